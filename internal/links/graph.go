// Package links maintains the directed, typed link graph between issues and
// the per-issue cache of resolved linked views.
package links

import (
	"encoding/json"
	"fmt"
	"sort"

	"boardcore/pkg/domain"
)

// Graph indexes links by source and by target. Links are unique per
// (source, target, type). Graph is not safe for concurrent use; callers
// serialize access.
type Graph struct {
	outgoing map[string]map[string]domain.Link
	incoming map[string]map[string]domain.Link
}

// NewGraph constructs an empty graph.
func NewGraph() *Graph {
	return &Graph{
		outgoing: make(map[string]map[string]domain.Link),
		incoming: make(map[string]map[string]domain.Link),
	}
}

// LinkKey derives the identity key of a link.
func LinkKey(sourceID, targetID string, linkType domain.LinkType) string {
	return sourceID + ":" + string(linkType) + ":" + targetID
}

// CreateLink builds a link value without adding it to the graph.
func (g *Graph) CreateLink(sourceID, targetID string, linkType domain.LinkType, attrs map[string]string) domain.Link {
	var cp map[string]string
	if len(attrs) > 0 {
		cp = make(map[string]string, len(attrs))
		for k, v := range attrs {
			cp[k] = v
		}
	}
	return domain.Link{
		Key:      LinkKey(sourceID, targetID, linkType),
		SourceID: sourceID,
		TargetID: targetID,
		Type:     linkType,
		Attrs:    cp,
	}
}

// AddLink stores link, replacing any link with the same key.
func (g *Graph) AddLink(link domain.Link) {
	if link.Key == "" {
		link.Key = LinkKey(link.SourceID, link.TargetID, link.Type)
	}
	bucket(g.outgoing, link.SourceID)[link.Key] = link
	bucket(g.incoming, link.TargetID)[link.Key] = link
}

// RemoveBySource drops every outgoing link of id and returns the removed links.
func (g *Graph) RemoveBySource(id string) []domain.Link {
	out := sortedLinks(g.outgoing[id])
	for _, link := range out {
		if in := g.incoming[link.TargetID]; in != nil {
			delete(in, link.Key)
			if len(in) == 0 {
				delete(g.incoming, link.TargetID)
			}
		}
	}
	delete(g.outgoing, id)
	return out
}

// GetBySource returns the outgoing links of id ordered by key.
func (g *Graph) GetBySource(id string) []domain.Link {
	return sortedLinks(g.outgoing[id])
}

// GetInverse returns the links targeting id, expressed from id's side: the
// source becomes id, the target becomes the original source and the type is
// inverted.
func (g *Graph) GetInverse(id string) []domain.Link {
	in := sortedLinks(g.incoming[id])
	out := make([]domain.Link, 0, len(in))
	for _, link := range in {
		inv := g.CreateLink(id, link.SourceID, link.Type.Inverse(), link.Attrs)
		out = append(out, inv)
	}
	return out
}

// Len returns the number of stored links.
func (g *Graph) Len() int {
	n := 0
	for _, links := range g.outgoing {
		n += len(links)
	}
	return n
}

// Linked resolves the outgoing and inverse links of id into views carrying the
// target issue. Links whose target lookup fails are dropped.
func (g *Graph) Linked(id string, lookup func(string) (domain.Issue, bool)) []domain.LinkedIssue {
	all := append(g.GetBySource(id), g.GetInverse(id)...)
	views := make([]domain.LinkedIssue, 0, len(all))
	for _, link := range all {
		target, ok := lookup(link.TargetID)
		if !ok {
			continue
		}
		views = append(views, domain.LinkedIssue{Link: link, Target: target})
	}
	return views
}

// MarshalJSON encodes the graph as a list of links ordered by key.
func (g *Graph) MarshalJSON() ([]byte, error) {
	all := make([]domain.Link, 0, g.Len())
	for _, links := range g.outgoing {
		for _, link := range links {
			all = append(all, link)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })
	return json.Marshal(all)
}

// UnmarshalJSON replaces the graph contents with the encoded links.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var all []domain.Link
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("decode links: %w", err)
	}
	fresh := NewGraph()
	for i, link := range all {
		if link.SourceID == "" || link.TargetID == "" || link.Type == "" {
			return fmt.Errorf("link %d: source, target and type required", i)
		}
		fresh.AddLink(link)
	}
	g.outgoing = fresh.outgoing
	g.incoming = fresh.incoming
	return nil
}

func bucket(m map[string]map[string]domain.Link, id string) map[string]domain.Link {
	b, ok := m[id]
	if !ok {
		b = make(map[string]domain.Link)
		m[id] = b
	}
	return b
}

func sortedLinks(m map[string]domain.Link) []domain.Link {
	out := make([]domain.Link, 0, len(m))
	for _, link := range m {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
