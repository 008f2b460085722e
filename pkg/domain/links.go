package domain

// LinkType tags a directed relation between two issues.
type LinkType string

// Known link types. Each has an inverse describing the same relation as seen
// from the target.
const (
	LinkCloses     LinkType = "CLOSES"
	LinkClosedBy   LinkType = "CLOSED_BY"
	LinkDependsOn  LinkType = "DEPENDS_ON"
	LinkRequiredBy LinkType = "REQUIRED_BY"
	LinkParentOf   LinkType = "PARENT_OF"
	LinkChildOf    LinkType = "CHILD_OF"
	LinkLinkedTo   LinkType = "LINKED_TO"
)

var inverseLinkTypes = map[LinkType]LinkType{
	LinkCloses:     LinkClosedBy,
	LinkClosedBy:   LinkCloses,
	LinkDependsOn:  LinkRequiredBy,
	LinkRequiredBy: LinkDependsOn,
	LinkParentOf:   LinkChildOf,
	LinkChildOf:    LinkParentOf,
	LinkLinkedTo:   LinkLinkedTo,
}

// Inverse returns the type describing the relation from the target's side.
// Unknown types are their own inverse.
func (t LinkType) Inverse() LinkType {
	if inv, ok := inverseLinkTypes[t]; ok {
		return inv
	}
	return t
}

// Link is a typed directed edge between two live issues.
type Link struct {
	Key      string            `json:"key"`
	SourceID string            `json:"sourceId"`
	TargetID string            `json:"targetId"`
	Type     LinkType          `json:"type"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Reference is a link mention found in an issue, before resolution.
// Empty Owner or Repo default to the referencing issue's repository.
type Reference struct {
	Owner  string
	Repo   string
	Number int
	Type   LinkType
	Attrs  map[string]string
}
