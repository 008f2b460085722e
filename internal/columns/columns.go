// Package columns maps issues to board columns based on a YAML column
// configuration.
package columns

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"boardcore/pkg/domain"
)

// Config is the on-disk column configuration.
type Config struct {
	Columns []domain.Column `yaml:"columns" validate:"required,min=1,dive"`
}

// DefaultConfig is used when no configuration file is provided.
var DefaultConfig = Config{Columns: []domain.Column{
	{Name: "Inbox"},
	{Name: "Backlog", Label: "backlog"},
	{Name: "Ready", Label: "ready", Sorting: true},
	{Name: "In Progress", Label: "in progress", Sorting: true},
	{Name: "Needs Review", Label: "needs review", Sorting: true},
	{Name: "Done", Closed: true},
}}

// Columns implements domain.ColumnResolver.
type Columns struct {
	columns []domain.Column
	byName  map[string]domain.Column
	labels  map[string]string
	closed  string
	dflt    string
}

var _ domain.ColumnResolver = (*Columns)(nil)

var validate = validator.New()

// New validates cfg and builds a resolver.
func New(cfg Config) (*Columns, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid column config: %w", err)
	}
	c := &Columns{
		byName: make(map[string]domain.Column, len(cfg.Columns)),
		labels: make(map[string]string),
	}
	for _, col := range cfg.Columns {
		if _, dup := c.byName[col.Name]; dup {
			return nil, fmt.Errorf("invalid column config: duplicate column %q", col.Name)
		}
		c.columns = append(c.columns, col)
		c.byName[col.Name] = col
		if col.Label != "" {
			c.labels[strings.ToLower(col.Label)] = col.Name
		}
		if col.Closed && c.closed == "" {
			c.closed = col.Name
		}
		if col.Label == "" && !col.Closed && c.dflt == "" {
			c.dflt = col.Name
		}
	}
	if c.dflt == "" {
		c.dflt = c.columns[0].Name
	}
	if c.closed == "" {
		c.closed = c.columns[len(c.columns)-1].Name
	}
	return c, nil
}

// Parse decodes a YAML configuration document.
func Parse(data []byte) (*Columns, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode column config: %w", err)
	}
	return New(cfg)
}

// Load reads the configuration at path. An empty path yields DefaultConfig.
func Load(path string) (*Columns, error) {
	if path == "" {
		return New(DefaultConfig)
	}
	// #nosec G304 -- operator supplied configuration path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column config: %w", err)
	}
	return Parse(data)
}

// ResolveColumn picks the closed column for closed issues, else the column of
// the first matching column label, else the default column.
func (c *Columns) ResolveColumn(ctx context.Context, issue domain.Issue) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.EqualFold(issue.State, "closed") {
		return c.closed, nil
	}
	for _, col := range c.columns {
		if col.Label == "" {
			continue
		}
		for _, label := range issue.Labels {
			if strings.EqualFold(label.Name, col.Label) {
				return col.Name, nil
			}
		}
	}
	return c.dflt, nil
}

// IsColumnLabel reports whether name is reserved by a column.
func (c *Columns) IsColumnLabel(name string) bool {
	_, ok := c.labels[strings.ToLower(name)]
	return ok
}

// IsSortingColumn reports whether the named column orders by links.
func (c *Columns) IsSortingColumn(name string) bool {
	return c.byName[name].Sorting
}

// FindColumn looks up a column by name.
func (c *Columns) FindColumn(name string) (domain.Column, bool) {
	col, ok := c.byName[name]
	return col, ok
}

// All returns the configured columns in board order.
func (c *Columns) All() []domain.Column {
	return append([]domain.Column(nil), c.columns...)
}
