package domain

import (
	"fmt"
	"sync"

	"butterfly/internal/errors"
)

// Permit is the token returned by BeginExpansion. It must be handed back to
// exactly one of CommitExpansion, CompleteEmpty or AbortExpansion.
type Permit struct {
	graph  *Graph
	nodeID string
	seq    uint64
}

// NodeID returns the node the permit was issued for
func (p Permit) NodeID() string {
	return p.nodeID
}

// Snapshot is a point-in-time copy of the graph
type Snapshot struct {
	Version uint64 `json:"version"`
	Nodes   []Node `json:"nodes"`
	Links   []Link `json:"links"`
}

// Graph is the growing node-link model. Nodes and links are kept in
// insertion order. The graph owns its identity allocator and structural
// version; two graphs never share either.
type Graph struct {
	mu sync.Mutex

	nodes []Node
	index map[string]int // node id -> position in nodes
	links []Link
	keys  map[string]struct{}

	nextID  uint64
	version uint64

	permits    map[string]uint64 // node id -> outstanding permit seq
	nextPermit uint64
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		index:   make(map[string]int),
		keys:    make(map[string]struct{}),
		permits: make(map[string]uint64),
	}
}

func (g *Graph) allocID() string {
	id := fmt.Sprintf("n%d", g.nextID)
	g.nextID++
	return id
}

// AddSeed inserts the first node. The node's ID and State are overwritten.
func (g *Graph) AddSeed(n Node) (Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.nodes) > 0 {
		return Node{}, errors.Wrap(ErrInvalidState, "graph already seeded")
	}
	if err := n.Fields.Validate(); err != nil {
		return Node{}, err
	}

	n.ID = g.allocID()
	n.State = StateUnexpanded
	n.Fields = n.Fields.Normalize()
	n.Position = nil
	g.insert(n)
	g.version++
	return n, nil
}

func (g *Graph) insert(n Node) {
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// BeginExpansion moves a node from Unexpanded to Expanding. A node that is
// already Expanding or Expanded yields ErrDenied and is left untouched.
func (g *Graph) BeginExpansion(nodeID string) (Permit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i, ok := g.index[nodeID]
	if !ok {
		return Permit{}, errors.Wrapf(ErrNodeNotFound, "node %s", nodeID)
	}
	if g.nodes[i].State != StateUnexpanded {
		return Permit{}, errors.Wrapf(ErrDenied, "node %s is %s", nodeID, g.nodes[i].State)
	}

	g.nextPermit++
	g.permits[nodeID] = g.nextPermit
	g.nodes[i].State = StateExpanding
	return Permit{graph: g, nodeID: nodeID, seq: g.nextPermit}, nil
}

// redeem checks a permit and returns the index of its node. Caller holds mu.
func (g *Graph) redeem(p Permit) (int, error) {
	if p.graph != g {
		return 0, errors.Wrap(ErrInvalidState, "permit issued by another graph")
	}
	seq, ok := g.permits[p.nodeID]
	if !ok || seq != p.seq {
		return 0, errors.Wrapf(ErrInvalidState, "stale permit for node %s", p.nodeID)
	}
	i, ok := g.index[p.nodeID]
	if !ok || g.nodes[i].State != StateExpanding {
		return 0, errors.Wrapf(ErrInvalidState, "node %s is not expanding", p.nodeID)
	}
	return i, nil
}

// CommitExpansion merges an expansion result. newNodes carry provisional IDs
// chosen by the caller; newLinks may reference those or existing node ids.
// Every link is checked before anything is written: a single dangling
// endpoint rejects the whole commit with ErrIntegrity and the graph is left
// unchanged, origin still Expanding.
//
// On success each new node gets a graph-allocated ID, link endpoints are
// rewritten, the origin becomes Expanded and the version is bumped. The
// inserted nodes are returned in order.
func (g *Graph) CommitExpansion(p Permit, newNodes []Node, newLinks []Link) ([]Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	origin, err := g.redeem(p)
	if err != nil {
		return nil, err
	}

	provisional := make(map[string]int, len(newNodes))
	for i, n := range newNodes {
		if n.ID == "" {
			return nil, errors.Wrapf(ErrIntegrity, "new node %d has no provisional id", i)
		}
		if _, dup := provisional[n.ID]; dup {
			return nil, errors.Wrapf(ErrIntegrity, "duplicate provisional id %s", n.ID)
		}
		if err := n.Fields.Validate(); err != nil {
			return nil, errors.Mark(err, ErrIntegrity)
		}
		provisional[n.ID] = i
	}

	// Final ids are only drawn once validation passes, so a rejected commit
	// does not advance the allocator either.
	final := make([]string, len(newNodes))
	next := g.nextID
	for i := range newNodes {
		final[i] = fmt.Sprintf("n%d", next)
		next++
	}

	resolve := func(id string) (string, bool) {
		if i, ok := provisional[id]; ok {
			return final[i], true
		}
		if _, ok := g.index[id]; ok {
			return id, true
		}
		return "", false
	}

	links := make([]Link, 0, len(newLinks))
	seen := make(map[string]struct{}, len(newLinks))
	for _, l := range newLinks {
		src, ok := resolve(l.SourceID)
		if !ok {
			return nil, errors.Wrapf(ErrIntegrity, "link source %s does not exist", l.SourceID)
		}
		tgt, ok := resolve(l.TargetID)
		if !ok {
			return nil, errors.Wrapf(ErrIntegrity, "link target %s does not exist", l.TargetID)
		}
		l.SourceID, l.TargetID = src, tgt
		key := l.Key()
		if _, dup := g.keys[key]; dup {
			return nil, errors.Wrapf(ErrIntegrity, "link %s already exists", key)
		}
		if _, dup := seen[key]; dup {
			return nil, errors.Wrapf(ErrIntegrity, "link %s repeated in commit", key)
		}
		seen[key] = struct{}{}
		links = append(links, l)
	}

	inserted := make([]Node, len(newNodes))
	for i, n := range newNodes {
		n.ID = final[i]
		n.State = StateUnexpanded
		n.Fields = n.Fields.Normalize()
		n.Position = nil
		g.insert(n)
		inserted[i] = n
	}
	g.nextID = next
	for _, l := range links {
		g.keys[l.Key()] = struct{}{}
		g.links = append(g.links, l)
	}

	g.nodes[origin].State = StateExpanded
	delete(g.permits, p.nodeID)
	g.version++
	return inserted, nil
}

// CompleteEmpty finishes an expansion that produced no children. The node
// becomes Expanded for good.
func (g *Graph) CompleteEmpty(p Permit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i, err := g.redeem(p)
	if err != nil {
		return err
	}
	g.nodes[i].State = StateExpanded
	delete(g.permits, p.nodeID)
	g.version++
	return nil
}

// AbortExpansion returns the node to Unexpanded so it can be clicked again
func (g *Graph) AbortExpansion(p Permit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i, err := g.redeem(p)
	if err != nil {
		return err
	}
	g.nodes[i].State = StateUnexpanded
	delete(g.permits, p.nodeID)
	return nil
}

// Version increases with every structural or state-visible change
func (g *Graph) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}

// Len returns the node count
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Node looks up a node by id
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns a copy of all nodes in insertion order
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Node(nil), g.nodes...)
}

// Links returns a copy of all links in insertion order
func (g *Graph) Links() []Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Link(nil), g.links...)
}

// Snapshot copies nodes, links and version under one lock
func (g *Graph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Version: g.version,
		Nodes:   append([]Node{}, g.nodes...),
		Links:   append([]Link{}, g.links...),
	}
}
