// Package expansion implements the one-shot-per-node expansion protocol:
// guard, dispatch one fetch, and resolve its result back into the graph.
package expansion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

// DefaultTimeout bounds a single remote fetch
const DefaultTimeout = 15 * time.Second

// Notice texts
const (
	MsgNoMore        = "No more articles!"
	MsgFetchFailed   = "Could not load related articles. Click again to retry."
	MsgInternalError = "Something went wrong while expanding this article."
)

// Fetcher retrieves related items from the remote source. A transport or
// server failure is returned as an error; "nothing further" is a
// RelatedEmpty result.
type Fetcher interface {
	Related(ctx context.Context, externalKey string, dir domain.Direction) (domain.RelatedResult, error)
}

// Level grades a user notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a non-fatal message for the user
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	NodeID  string `json:"node_id,omitempty"`
}

// Notifier delivers notices to the user
type Notifier interface {
	Notify(n Notice)
}

// Marker toggles the visual clicked state of a node
type Marker interface {
	MarkClicked(nodeID string)
	ClearClicked(nodeID string)
}

// Result is what a fetch goroutine posts back to the loop
type Result struct {
	Permit  domain.Permit
	Related domain.RelatedResult
	Err     error
	Elapsed time.Duration
}

// Outcome classifies how a click or result was handled
type Outcome string

const (
	OutcomeDenied     Outcome = "denied"
	OutcomeDispatched Outcome = "dispatched"
	OutcomeCommitted  Outcome = "committed"
	OutcomeEmpty      Outcome = "empty"
	OutcomeFailed     Outcome = "failed"
	OutcomeDefect     Outcome = "defect"
)

// Resolution reports what Resolve did
type Resolution struct {
	Outcome Outcome
	NodeID  string
	Added   []domain.Node
	Err     error
}

// Options configure a Protocol
type Options struct {
	Direction domain.Direction
	Timeout   time.Duration

	// OnFirstPermit runs once, on the loop, the first time a click is
	// granted a permit.
	OnFirstPermit func()
}

// Protocol serializes expansions over one graph. Click and Resolve must be
// called from the goroutine that owns the graph; only fetches run elsewhere.
type Protocol struct {
	graph    *domain.Graph
	fetcher  Fetcher
	notifier Notifier
	marker   Marker
	opts     Options
	log      *zap.SugaredLogger

	results  chan Result
	wg       sync.WaitGroup
	permits  int
	inflight int
}

// New creates a protocol bound to a graph
func New(g *domain.Graph, f Fetcher, n Notifier, m Marker, opts Options, log *zap.SugaredLogger) *Protocol {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Direction == "" {
		opts.Direction = domain.DirectionFuture
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Protocol{
		graph:    g,
		fetcher:  f,
		notifier: n,
		marker:   m,
		opts:     opts,
		log:      log,
		results:  make(chan Result, 16),
	}
}

// Results is the channel fetch goroutines post to. The owner drains it and
// passes each value to Resolve.
func (p *Protocol) Results() <-chan Result {
	return p.results
}

// Click starts an expansion of nodeID. A node that is already expanding or
// expanded is a silent no-op reported as OutcomeDenied.
func (p *Protocol) Click(ctx context.Context, nodeID string) (Outcome, error) {
	node, ok := p.graph.Node(nodeID)
	if !ok {
		return OutcomeDenied, errors.Wrapf(domain.ErrNodeNotFound, "click %s", nodeID)
	}

	permit, err := p.graph.BeginExpansion(nodeID)
	if errors.Is(err, domain.ErrDenied) {
		p.log.Debugw("Expansion denied", "node", nodeID, "state", node.State)
		return OutcomeDenied, nil
	}
	if err != nil {
		return OutcomeDenied, err
	}

	if p.marker != nil {
		p.marker.MarkClicked(nodeID)
	}
	p.permits++
	if p.permits == 1 && p.opts.OnFirstPermit != nil {
		p.opts.OnFirstPermit()
	}

	p.inflight++
	p.wg.Add(1)
	go p.fetch(ctx, permit, node.ExternalKey)

	p.log.Infow("Expansion dispatched", "node", nodeID, "key", node.ExternalKey, "direction", p.opts.Direction)
	return OutcomeDispatched, nil
}

func (p *Protocol) fetch(ctx context.Context, permit domain.Permit, key string) {
	defer p.wg.Done()

	fctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	related, err := p.fetcher.Related(fctx, key, p.opts.Direction)
	res := Result{Permit: permit, Related: related, Err: err, Elapsed: time.Since(start)}

	select {
	case p.results <- res:
	case <-ctx.Done():
	}
}

// Resolve applies a fetch result to the graph
func (p *Protocol) Resolve(r Result) Resolution {
	p.inflight--
	nodeID := r.Permit.NodeID()

	if r.Err != nil {
		return p.fail(r.Permit, r.Err)
	}

	if r.Related.IsEmpty() {
		if err := p.graph.CompleteEmpty(r.Permit); err != nil {
			return p.defect(r.Permit, err)
		}
		p.notify(Notice{Level: LevelInfo, Message: MsgNoMore, NodeID: nodeID})
		p.log.Infow("Expansion empty", "node", nodeID, "elapsed", r.Elapsed)
		return Resolution{Outcome: OutcomeEmpty, NodeID: nodeID}
	}

	nodes := make([]domain.Node, 0, len(r.Related.Items))
	links := make([]domain.Link, 0, len(r.Related.Items))
	for i, item := range r.Related.Items {
		n := domain.NewNode(item.ExternalKey, item.Fields)
		n.ID = fmt.Sprintf("new%d", i)
		nodes = append(nodes, n)
		links = append(links, domain.NewLink(nodeID, n.ID, item.Fields.DateDifference))
	}

	added, err := p.graph.CommitExpansion(r.Permit, nodes, links)
	if err != nil {
		return p.defect(r.Permit, err)
	}
	p.log.Infow("Expansion committed", "node", nodeID, "added", len(added), "elapsed", r.Elapsed)
	return Resolution{Outcome: OutcomeCommitted, NodeID: nodeID, Added: added}
}

func (p *Protocol) fail(permit domain.Permit, cause error) Resolution {
	nodeID := permit.NodeID()
	if err := p.graph.AbortExpansion(permit); err != nil {
		return p.defect(permit, err)
	}
	if p.marker != nil {
		p.marker.ClearClicked(nodeID)
	}
	p.notify(Notice{Level: LevelWarning, Message: MsgFetchFailed, NodeID: nodeID})
	p.log.Warnw("Expansion failed", "node", nodeID, "error", cause)
	return Resolution{Outcome: OutcomeFailed, NodeID: nodeID, Err: cause}
}

// defect handles results the graph refused. The graph is unchanged, so the
// node is returned to Unexpanded where the permit is still valid.
func (p *Protocol) defect(permit domain.Permit, cause error) Resolution {
	nodeID := permit.NodeID()
	p.log.Errorw("Expansion defect", "node", nodeID, "error", fmt.Sprintf("%+v", cause))
	if err := p.graph.AbortExpansion(permit); err == nil && p.marker != nil {
		p.marker.ClearClicked(nodeID)
	}
	p.notify(Notice{Level: LevelError, Message: MsgInternalError, NodeID: nodeID})
	return Resolution{Outcome: OutcomeDefect, NodeID: nodeID, Err: cause}
}

func (p *Protocol) notify(n Notice) {
	if p.notifier != nil {
		p.notifier.Notify(n)
	}
}

// Inflight returns the number of dispatched fetches not yet resolved
func (p *Protocol) Inflight() int {
	return p.inflight
}

// Wait blocks until every fetch goroutine has returned
func (p *Protocol) Wait() {
	p.wg.Wait()
}
