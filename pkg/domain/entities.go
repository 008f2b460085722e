// Package domain defines the board entities, link types, change-feed records
// and collaborator contracts shared by the boardcore store and its adapters.
package domain

import (
	"encoding/json"
	"fmt"
)

// Owner identifies the account owning a repository.
type Owner struct {
	Login string `json:"login"`
}

// Repository identifies the owner/name pair an issue belongs to.
type Repository struct {
	Name  string `json:"name"`
	Owner Owner  `json:"owner"`
}

// FullName renders the repository as owner/name.
func (r Repository) FullName() string {
	return r.Owner.Login + "/" + r.Name
}

// IsZero reports whether no repository information is present.
func (r Repository) IsZero() bool {
	return r.Name == "" && r.Owner.Login == ""
}

// Label describes an issue label. ColumnLabel is set by the store when the
// label name is reserved by a board column.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	ColumnLabel bool   `json:"column_label,omitempty"`
}

// Issue is a board card. Fields not modelled explicitly are kept in Extra and
// survive JSON round trips untouched.
type Issue struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Number      int        `json:"number,omitempty"`
	Title       string     `json:"title,omitempty"`
	Body        string     `json:"body,omitempty"`
	State       string     `json:"state,omitempty"`
	PullRequest bool       `json:"pull_request,omitempty"`
	Repository  Repository `json:"repository"`
	Column      string     `json:"column,omitempty"`
	Order       float64    `json:"order"`
	Labels      []Label    `json:"labels,omitempty"`
	UpdatedAt   string     `json:"updated_at,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var issueFields = map[string]struct{}{
	"id": {}, "key": {}, "number": {}, "title": {}, "body": {}, "state": {},
	"pull_request": {}, "repository": {}, "column": {}, "order": {},
	"labels": {}, "updated_at": {},
}

// IssueKey builds the human readable owner/repo#number key.
func IssueKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

// Clone returns a deep copy of the issue.
func (i Issue) Clone() Issue {
	cp := i
	if i.Labels != nil {
		cp.Labels = append([]Label(nil), i.Labels...)
	}
	cp.Extra = cloneRawMap(i.Extra)
	return cp
}

// MarshalJSON flattens Extra into the top-level object.
func (i Issue) MarshalJSON() ([]byte, error) {
	type plain Issue
	return marshalWithExtra(plain(i), i.Extra, issueFields)
}

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
func (i *Issue) UnmarshalJSON(data []byte) error {
	type plain Issue
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	extra, err := extractExtra(data, issueFields)
	if err != nil {
		return err
	}
	*i = Issue(decoded)
	i.Extra = extra
	return nil
}

// LinkedIssue is a link seen from one issue, carrying the materialized target.
type LinkedIssue struct {
	Link
	Target Issue `json:"target"`
}

// BoardIssue is an issue together with its resolved links as shown on the board
// and published in the change feed.
type BoardIssue struct {
	Issue Issue
	Links []LinkedIssue
}

// MarshalJSON renders the issue fields with an additional links array.
func (b BoardIssue) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(b.Issue)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	links := b.Links
	if links == nil {
		links = []LinkedIssue{}
	}
	encoded, err := json.Marshal(links)
	if err != nil {
		return nil, err
	}
	fields["links"] = encoded
	return json.Marshal(fields)
}

// UnmarshalJSON splits the links array from the issue fields.
func (b *BoardIssue) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var links []LinkedIssue
	if raw, ok := fields["links"]; ok {
		if err := json.Unmarshal(raw, &links); err != nil {
			return fmt.Errorf("decode links: %w", err)
		}
		delete(fields, "links")
	}
	rest, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	var issue Issue
	if err := json.Unmarshal(rest, &issue); err != nil {
		return err
	}
	b.Issue = issue
	b.Links = links
	return nil
}

// ChangeType distinguishes change-feed entries.
type ChangeType string

// Change-feed entry kinds.
const (
	ChangeUpdate ChangeType = "update"
	ChangeRemove ChangeType = "remove"
)

// ChangeEntry is one record of the change feed.
type ChangeEntry struct {
	ID    string     `json:"id"`
	Type  ChangeType `json:"type"`
	Issue BoardIssue `json:"issue"`
}

func marshalWithExtra(v any, extra map[string]json.RawMessage, known map[string]struct{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := known[k]; ok {
			continue
		}
		fields[k] = val
	}
	return json.Marshal(fields)
}

func extractExtra(data []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range fields {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

func cloneRawMap(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
