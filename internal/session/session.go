// Package session runs one exploration per Session: a single loop goroutine
// owns the graph, the layout simulation, the scene and the viewport, and
// serializes every mutation. HTTP handlers and WebSocket clients reach the
// loop through blocking calls; fetches post their results back to it.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/expansion"
	"butterfly/internal/hub"
	"butterfly/internal/layout"
	"butterfly/internal/metrics"
	"butterfly/internal/scene"
	"butterfly/internal/service"
	"butterfly/internal/viewport"
)

// ErrClosed is returned for calls on a session whose loop has stopped
var ErrClosed = errors.New("session closed")

// View is the full state of a session at one point of the loop
type View struct {
	ID       string          `json:"id"`
	Created  time.Time       `json:"created"`
	Graph    domain.Snapshot `json:"graph"`
	Scene    []scene.Element `json:"scene"`
	Viewport viewport.Size   `json:"viewport"`
	Params   layout.Params   `json:"params"`
	Running  bool            `json:"running"`
	Pass     int             `json:"pass"`
}

// ClickResult reports what a click did
type ClickResult struct {
	NodeID  string            `json:"node_id"`
	Outcome expansion.Outcome `json:"outcome"`
}

type call struct {
	fn   func()
	done chan struct{}
}

// Session is one growing graph and everything that draws it
type Session struct {
	id      string
	created time.Time
	opts    Options

	graph  *domain.Graph
	sim    *layout.Simulation
	binder *scene.Binder
	view   *viewport.Viewport
	proto  *expansion.Protocol

	bus     *service.EventBus
	hub     *hub.Hub
	metrics *metrics.Collector
	log     *zap.SugaredLogger

	calls   chan call
	done    chan struct{}
	restage <-chan time.Time

	// Set on the loop only
	loopCtx     context.Context
	lastOutcome expansion.Outcome

	lastActivity atomic.Int64
}

// New builds a session seeded with one item. Run must be called to start it.
func New(id string, seed domain.Item, fetcher expansion.Fetcher, opts Options, m *metrics.Collector, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts = opts.withDefaults()
	log = log.With("session", id)

	view, err := viewport.New(opts.WindowWidth, opts.WindowHeight, opts.WidthFactor, opts.HeightFactor)
	if err != nil {
		return nil, err
	}

	g := domain.NewGraph()
	if _, err := g.AddSeed(domain.NewNode(seed.ExternalKey, seed.Fields)); err != nil {
		return nil, errors.Wrap(err, "seed session")
	}

	rngSeed := opts.Seed
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}
	size := view.Size()

	s := &Session{
		id:      id,
		created: time.Now(),
		opts:    opts,
		graph:   g,
		sim:     layout.New(opts.Initial, size.Width, size.Height, rngSeed),
		view:    view,
		bus:     service.NewEventBus(),
		metrics: m,
		log:     log,
		calls:   make(chan call),
		done:    make(chan struct{}),
	}
	s.binder = scene.NewBinder(s, s.onClick, scene.Options{ClearOnHoverOut: opts.ClearOnHoverOut}, log.Named("scene"))
	s.proto = expansion.New(g, fetcher, s, s, expansion.Options{
		Direction:     opts.Direction,
		Timeout:       opts.FetchTimeout,
		OnFirstPermit: s.scheduleRestage,
	}, log.Named("expansion"))
	s.hub = hub.New(s.onIntent, log.Named("hub"))
	s.touch()
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Hub serves this session's SSE and WebSocket clients
func (s *Session) Hub() *hub.Hub {
	return s.hub
}

// Subscribe attaches a channel to the session's event bus
func (s *Session) Subscribe(ch chan<- service.Event) func() {
	return s.bus.Subscribe(ch)
}

// Done is closed when the loop has stopped
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until ctx is cancelled
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	hubCtx, stopHub := context.WithCancel(ctx)
	go s.hub.Run(hubCtx)
	defer func() {
		stopHub()
		<-s.hub.Done()
	}()

	s.loopCtx = ctx
	seed := s.graph.Nodes()[0]
	s.publish(service.EventSessionSeeded, seed)
	s.structuralPass()

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.log.Infow("Session started", "seed", seed.ExternalKey, "tick", s.opts.TickInterval)

	for {
		select {
		case <-ctx.Done():
			s.publish(service.EventSessionClosed, nil)
			s.proto.Wait()
			s.log.Infow("Session stopped", "nodes", s.graph.Len())
			return ctx.Err()

		case c := <-s.calls:
			c.fn()
			close(c.done)

		case res := <-s.proto.Results():
			r := s.proto.Resolve(res)
			s.metrics.Expansion(string(r.Outcome), len(r.Added))
			switch r.Outcome {
			case expansion.OutcomeCommitted, expansion.OutcomeEmpty:
				s.structuralPass()
			}

		case <-s.restage:
			s.restage = nil
			s.sim.SetParams(s.opts.Expanded)
			s.sim.Restart()
			s.log.Debugw("Layout restaged", "charge", s.opts.Expanded.Charge, "friction", s.opts.Expanded.Friction)

		case <-ticker.C:
			s.tick()
		}
	}
}

// structuralPass reconciles the scene with the graph and, when elements were
// added, grows the viewport and feeds the new topology to the simulation.
func (s *Session) structuralPass() {
	patch := s.binder.Reconcile(s.graph)
	if patch.Empty() {
		return
	}
	if patch.Structural() {
		size := s.view.Grow()
		s.sim.Resize(size.Width, size.Height)
		s.publish(service.EventViewportResized, size)

		snap := s.graph.Snapshot()
		s.sim.Sync(snap.Nodes, snap.Links)
	}
	s.publish(service.EventScenePatch, patch)
}

// tick advances the layout and emits a frame. A cooled simulation emits
// nothing until the next structural change reheats it.
func (s *Session) tick() {
	if !s.sim.Running() {
		return
	}
	s.sim.Tick()
	s.metrics.Tick()
	s.publish(service.EventFrame, s.binder.Frame(s.sim.Positions(), s.offset()))
}

func (s *Session) offset() scene.Offset {
	return scene.Drift(s.opts.Drift, s.view.Passes())
}

func (s *Session) scheduleRestage() {
	s.restage = time.After(s.opts.RestageDelay)
}

func (s *Session) publish(t service.EventType, payload interface{}) {
	ev := s.bus.Publish(service.Event{Type: t, SessionID: s.id, Payload: payload})
	if t == service.EventFrame {
		s.hub.BroadcastLossy(ev)
		return
	}
	s.hub.Broadcast(ev)
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last intent
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// do runs fn on the loop and waits for it
func (s *Session) do(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case s.calls <- c:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Click expands a node
func (s *Session) Click(ctx context.Context, nodeID string) (ClickResult, error) {
	s.touch()
	res := ClickResult{NodeID: nodeID, Outcome: expansion.OutcomeDenied}
	var clickErr error
	err := s.do(ctx, func() {
		if _, ok := s.graph.Node(nodeID); !ok {
			clickErr = errors.Wrapf(domain.ErrNodeNotFound, "node %s", nodeID)
			return
		}
		s.lastOutcome = expansion.OutcomeDenied
		if clickErr = s.binder.Click(nodeID); clickErr != nil {
			return
		}
		res.Outcome = s.lastOutcome
	})
	if err != nil {
		return res, err
	}
	return res, clickErr
}

// Hover shows a node in the info panel
func (s *Session) Hover(ctx context.Context, nodeID string) error {
	return s.pointer(ctx, nodeID, s.binder.Hover)
}

// Unhover ends a hover
func (s *Session) Unhover(ctx context.Context, nodeID string) error {
	return s.pointer(ctx, nodeID, s.binder.Unhover)
}

func (s *Session) pointer(ctx context.Context, nodeID string, fn func(string) error) error {
	s.touch()
	var perr error
	err := s.do(ctx, func() {
		if _, ok := s.graph.Node(nodeID); !ok {
			perr = errors.Wrapf(domain.ErrNodeNotFound, "node %s", nodeID)
			return
		}
		perr = fn(nodeID)
	})
	if err != nil {
		return err
	}
	return perr
}

// Snapshot captures the session state on the loop
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() {
		snap := s.graph.Snapshot()
		for i := range snap.Nodes {
			if p, ok := s.sim.Position(snap.Nodes[i].ID); ok {
				snap.Nodes[i].Position = &p
			}
		}
		v = View{
			ID:       s.id,
			Created:  s.created,
			Graph:    snap,
			Scene:    s.binder.Elements(),
			Viewport: s.view.Size(),
			Params:   s.sim.Params(),
			Running:  s.sim.Running(),
			Pass:     s.binder.Pass(),
		}
	})
	return v, err
}

// onIntent routes WebSocket intents onto the loop
func (s *Session) onIntent(in hub.Intent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch in.Type {
	case "click":
		_, err = s.Click(ctx, in.NodeID)
	case "hover":
		err = s.Hover(ctx, in.NodeID)
	case "unhover":
		err = s.Unhover(ctx, in.NodeID)
	default:
		err = errors.Newf("unknown intent %q", in.Type)
	}
	if err != nil {
		s.log.Debugw("Intent rejected", "type", in.Type, "node", in.NodeID, "error", err)
	}
}

// onClick is the binder's click handler; it runs on the loop.
func (s *Session) onClick(nodeID string) {
	out, err := s.proto.Click(s.loopCtx, nodeID)
	if err != nil {
		s.log.Warnw("Click failed", "node", nodeID, "error", err)
		return
	}
	s.lastOutcome = out
	if out == expansion.OutcomeDispatched {
		s.publish(service.EventNodeClicked, ClickResult{NodeID: nodeID, Outcome: out})
	}
}

// Set implements scene.InfoPanel
func (s *Session) Set(fields domain.DisplayFields) {
	s.publish(service.EventPanelSet, fields)
}

// Clear implements scene.InfoPanel
func (s *Session) Clear() {
	s.publish(service.EventPanelCleared, nil)
}

// Notify implements expansion.Notifier
func (s *Session) Notify(n expansion.Notice) {
	s.publish(service.EventNotice, n)
}

// MarkClicked implements expansion.Marker
func (s *Session) MarkClicked(nodeID string) {
	if e, ok := s.binder.MarkClicked(nodeID); ok {
		s.publish(service.EventScenePatch, scene.Patch{Version: s.graph.Version(), Pass: s.binder.Pass(), Updated: []scene.Element{e}})
	}
}

// ClearClicked implements expansion.Marker
func (s *Session) ClearClicked(nodeID string) {
	if e, ok := s.binder.ClearClicked(nodeID); ok {
		s.publish(service.EventScenePatch, scene.Patch{Version: s.graph.Version(), Pass: s.binder.Pass(), Updated: []scene.Element{e}})
	}
}
