// Package scene keeps the retained, keyed set of drawable elements that
// mirrors the graph, binds interaction handlers to new nodes, and computes
// per-tick frames from layout positions.
package scene

import "butterfly/internal/domain"

// Kind is the type of a drawable element
type Kind string

const (
	KindNode      Kind = "node"       // Circle
	KindNodeLabel Kind = "node_label" // Headline text beside the circle
	KindNodeDate  Kind = "node_date"  // Date text above the headline
	KindLink      Kind = "link"       // Line between two circles
	KindLinkLabel Kind = "link_label" // Relation text at the line midpoint
)

// Element is one drawable. Ref is the node id for node kinds and the link
// key for link kinds.
type Element struct {
	Key     string                `json:"key"`
	Kind    Kind                  `json:"kind"`
	Ref     string                `json:"ref"`
	Text    string                `json:"text,omitempty"`
	Fresh   bool                  `json:"fresh,omitempty"`
	Starter bool                  `json:"starter,omitempty"`
	Clicked bool                  `json:"clicked,omitempty"`
	State   domain.ExpansionState `json:"state,omitempty"`

	// Source and Target are set for link kinds
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

func elementKey(k Kind, ref string) string {
	return string(k) + ":" + ref
}

// IsLabel reports whether the element carries freshness
func (e Element) IsLabel() bool {
	return e.Kind == KindNodeLabel || e.Kind == KindLinkLabel
}

// Patch is the result of one reconcile pass
type Patch struct {
	Version uint64    `json:"version"`
	Pass    int       `json:"pass"`
	Added   []Element `json:"added,omitempty"`
	Updated []Element `json:"updated,omitempty"`
	Removed []string  `json:"removed,omitempty"`
	Demoted []string  `json:"demoted,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return len(p.Added) == 0 && len(p.Updated) == 0 && len(p.Removed) == 0 && len(p.Demoted) == 0
}

// Structural reports whether elements were added or removed
func (p Patch) Structural() bool {
	return len(p.Added) > 0 || len(p.Removed) > 0
}
