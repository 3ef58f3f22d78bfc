package domain

// ExpansionState tracks a node's one-shot expansion lifecycle
type ExpansionState string

const (
	StateUnexpanded ExpansionState = "unexpanded" // Never expanded, or last attempt failed
	StateExpanding  ExpansionState = "expanding"  // Request outstanding
	StateExpanded   ExpansionState = "expanded"   // Terminal, with or without children
)

// Node represents one explorable item in the graph
type Node struct {
	ID          string         `json:"id"`
	ExternalKey string         `json:"external_key"`
	Fields      DisplayFields  `json:"fields"`
	State       ExpansionState `json:"state"`

	// Position is filled from the layout engine when a snapshot is taken.
	// Nil until the first simulation pass places the node.
	Position *Position `json:"position,omitempty"`
}

// NewNode creates an unexpanded node. The ID is left empty: the graph
// assigns it on insertion.
func NewNode(externalKey string, fields DisplayFields) Node {
	return Node{
		ExternalKey: externalKey,
		Fields:      fields.Normalize(),
		State:       StateUnexpanded,
	}
}

// Label returns the text shown next to the node
func (n Node) Label() string {
	return n.Fields.Label()
}

// Expandable reports whether a click may start an expansion
func (n Node) Expandable() bool {
	return n.State == StateUnexpanded
}
