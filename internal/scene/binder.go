package scene

import (
	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

// ErrUnbound is returned for interactions on nodes that have no handler
var ErrUnbound = errors.New("no handler bound for node")

// InfoPanel shows the details of the hovered node
type InfoPanel interface {
	Set(fields domain.DisplayFields)
	Clear()
}

// ClickHandler receives click intents on bound nodes
type ClickHandler func(nodeID string)

// GraphSource is the read side of the graph the binder reconciles against
type GraphSource interface {
	Snapshot() domain.Snapshot
}

// Options configure a Binder
type Options struct {
	// ClearOnHoverOut empties the info panel when the pointer leaves a node
	ClearOnHoverOut bool
}

// Binder keeps the keyed scene in step with the graph
type Binder struct {
	elements map[string]*Element
	order    []string
	fields   map[string]domain.DisplayFields // node id -> fields, for the info panel

	bound map[string]struct{} // node ids with handlers attached

	version uint64
	pass    int
	frames  uint64

	panel   InfoPanel
	onClick ClickHandler
	opts    Options
	log     *zap.SugaredLogger
}

// NewBinder creates an empty scene
func NewBinder(panel InfoPanel, onClick ClickHandler, opts Options, log *zap.SugaredLogger) *Binder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Binder{
		elements: make(map[string]*Element),
		fields:   make(map[string]domain.DisplayFields),
		bound:    make(map[string]struct{}),
		panel:    panel,
		onClick:  onClick,
		opts:     opts,
		log:      log,
	}
}

// Reconcile diffs the scene against the graph by key. Existing elements keep
// their state; new ones are created fresh and new nodes get handlers. Labels
// that were fresh before are demoted when the pass adds elements. Nothing
// happens when the graph version has not moved since the last pass.
func (b *Binder) Reconcile(g GraphSource) Patch {
	snap := g.Snapshot()
	if b.pass > 0 && snap.Version == b.version {
		return Patch{Version: b.version, Pass: b.pass}
	}

	b.pass++
	b.version = snap.Version
	patch := Patch{Version: snap.Version, Pass: b.pass}

	prior := len(b.order)
	live := make(map[string]struct{}, len(snap.Nodes)*3+len(snap.Links)*2)
	var newNodes []string

	for _, n := range snap.Nodes {
		b.fields[n.ID] = n.Fields
		circle := elementKey(KindNode, n.ID)
		live[circle] = struct{}{}
		live[elementKey(KindNodeLabel, n.ID)] = struct{}{}
		live[elementKey(KindNodeDate, n.ID)] = struct{}{}

		if e, ok := b.elements[circle]; ok {
			if e.State != n.State {
				e.State = n.State
				patch.Updated = append(patch.Updated, *e)
			}
			continue
		}

		label := &Element{
			Key:     elementKey(KindNodeLabel, n.ID),
			Kind:    KindNodeLabel,
			Ref:     n.ID,
			Text:    n.Label(),
			Fresh:   true,
			Starter: b.pass == 1 && len(b.order) == 0,
		}
		for _, e := range []*Element{
			{Key: circle, Kind: KindNode, Ref: n.ID, State: n.State},
			label,
			{Key: elementKey(KindNodeDate, n.ID), Kind: KindNodeDate, Ref: n.ID, Text: n.Fields.Date},
		} {
			b.add(e, &patch)
		}
		newNodes = append(newNodes, n.ID)
	}

	for _, l := range snap.Links {
		key := l.Key()
		line := elementKey(KindLink, key)
		live[line] = struct{}{}
		live[elementKey(KindLinkLabel, key)] = struct{}{}
		if _, ok := b.elements[line]; ok {
			continue
		}
		b.add(&Element{Key: line, Kind: KindLink, Ref: key, Source: l.SourceID, Target: l.TargetID}, &patch)
		b.add(&Element{
			Key:    elementKey(KindLinkLabel, key),
			Kind:   KindLinkLabel,
			Ref:    key,
			Text:   l.Label,
			Fresh:  true,
			Source: l.SourceID,
			Target: l.TargetID,
		}, &patch)
	}

	// Fresh labels from earlier passes give way only when this pass adds
	// elements. A version bump without new elements keeps them.
	if len(b.order) > prior {
		for _, key := range b.order[:prior] {
			e := b.elements[key]
			if e.Fresh {
				e.Fresh = false
				patch.Demoted = append(patch.Demoted, key)
			}
		}
	}

	if len(live) != len(b.order) {
		kept := b.order[:0]
		for _, key := range b.order {
			if _, ok := live[key]; ok {
				kept = append(kept, key)
				continue
			}
			e := b.elements[key]
			if e.Kind == KindNode {
				delete(b.bound, e.Ref)
				delete(b.fields, e.Ref)
			}
			delete(b.elements, key)
			patch.Removed = append(patch.Removed, key)
		}
		b.order = kept
	}

	// Handlers go on this pass's new nodes only.
	for _, id := range newNodes {
		b.bound[id] = struct{}{}
	}

	b.log.Debugw("Scene reconciled",
		"pass", b.pass,
		"version", snap.Version,
		"added", len(patch.Added),
		"demoted", len(patch.Demoted),
		"bound", len(b.bound))
	return patch
}

func (b *Binder) add(e *Element, p *Patch) {
	b.elements[e.Key] = e
	b.order = append(b.order, e.Key)
	p.Added = append(p.Added, *e)
}

// Hover shows the node in the info panel
func (b *Binder) Hover(nodeID string) error {
	if _, ok := b.bound[nodeID]; !ok {
		return errors.Wrapf(ErrUnbound, "hover %s", nodeID)
	}
	if b.panel != nil {
		b.panel.Set(b.fields[nodeID])
	}
	return nil
}

// Unhover clears the info panel when the policy asks for it
func (b *Binder) Unhover(nodeID string) error {
	if _, ok := b.bound[nodeID]; !ok {
		return errors.Wrapf(ErrUnbound, "unhover %s", nodeID)
	}
	if b.opts.ClearOnHoverOut && b.panel != nil {
		b.panel.Clear()
	}
	return nil
}

// Click forwards a click intent. A node already carrying the clicked marker
// swallows the click.
func (b *Binder) Click(nodeID string) error {
	if _, ok := b.bound[nodeID]; !ok {
		return errors.Wrapf(ErrUnbound, "click %s", nodeID)
	}
	if e := b.elements[elementKey(KindNode, nodeID)]; e != nil && e.Clicked {
		return nil
	}
	if b.onClick != nil {
		b.onClick(nodeID)
	}
	return nil
}

// MarkClicked sets the visual clicked marker on a node
func (b *Binder) MarkClicked(nodeID string) (Element, bool) {
	return b.setClicked(nodeID, true)
}

// ClearClicked removes the clicked marker, making the node clickable again
func (b *Binder) ClearClicked(nodeID string) (Element, bool) {
	return b.setClicked(nodeID, false)
}

func (b *Binder) setClicked(nodeID string, v bool) (Element, bool) {
	e, ok := b.elements[elementKey(KindNode, nodeID)]
	if !ok {
		return Element{}, false
	}
	e.Clicked = v
	return *e, true
}

// BoundHandlers returns how many nodes have handlers attached
func (b *Binder) BoundHandlers() int {
	return len(b.bound)
}

// Pass returns the number of reconcile passes that changed the scene
func (b *Binder) Pass() int {
	return b.pass
}

// Element looks up one element by key
func (b *Binder) Element(key string) (Element, bool) {
	e, ok := b.elements[key]
	if !ok {
		return Element{}, false
	}
	return *e, true
}

// NodeElement looks up the circle of a node
func (b *Binder) NodeElement(nodeID string) (Element, bool) {
	return b.Element(elementKey(KindNode, nodeID))
}

// Elements returns the scene in creation order
func (b *Binder) Elements() []Element {
	out := make([]Element, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, *b.elements[key])
	}
	return out
}
