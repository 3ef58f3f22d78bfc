package domain

// Link represents a directed relation from a source node to a target node
type Link struct {
	SourceID string `json:"source"`
	TargetID string `json:"target"`
	Label    string `json:"label,omitempty"`
}

// NewLink creates a new link
func NewLink(sourceID, targetID, label string) Link {
	return Link{
		SourceID: sourceID,
		TargetID: targetID,
		Label:    label,
	}
}

// Key is the link identity used for keyed reconciliation
func (l Link) Key() string {
	return l.SourceID + "-" + l.TargetID
}
