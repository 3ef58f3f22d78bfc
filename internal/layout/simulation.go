// Package layout runs the force-directed simulation that positions graph
// nodes. It reads the graph model through Sync and never mutates it.
package layout

import (
	"math"
	"math/rand/v2"

	"butterfly/internal/domain"
)

const (
	alphaStart = 0.1
	alphaDecay = 0.99
	alphaMin   = 0.005

	// placementJitter bounds the random offset of a newly placed node
	placementJitter = 10.0
)

type body struct {
	id     string
	x, y   float64
	vx, vy float64
}

type spring struct {
	source, target int
}

// Simulation holds positions and velocities keyed by node id. It is not
// safe for concurrent use; the owning session loop serializes access.
type Simulation struct {
	params Params

	width, height float64

	bodies []*body
	index  map[string]int
	links  []spring

	alpha   float64
	running bool
	ticks   uint64

	rng *rand.Rand
}

// New creates a stopped simulation over the given bounds. seed drives the
// placement jitter so layouts are reproducible.
func New(p Params, width, height float64, seed uint64) *Simulation {
	return &Simulation{
		params: p.WithDefaults(),
		width:  width,
		height: height,
		index:  make(map[string]int),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Sync makes the simulation match nodes and links. Known ids keep their
// position and velocity. New ids are placed next to the source of the first
// link pointing at them, or at the bounds centre, plus jitter. Ids missing
// from nodes are dropped. A sync that adds nodes reheats the simulation.
func (s *Simulation) Sync(nodes []domain.Node, links []domain.Link) {
	parent := make(map[string]string, len(links))
	for _, l := range links {
		if _, ok := parent[l.TargetID]; !ok {
			parent[l.TargetID] = l.SourceID
		}
	}

	bodies := make([]*body, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	added := false
	for _, n := range nodes {
		if i, ok := s.index[n.ID]; ok {
			index[n.ID] = len(bodies)
			bodies = append(bodies, s.bodies[i])
			continue
		}
		b := &body{id: n.ID}
		cx, cy := s.width/2, s.height/2
		if p, ok := parent[n.ID]; ok {
			if j, ok := index[p]; ok {
				cx, cy = bodies[j].x, bodies[j].y
			}
		}
		b.x = cx + s.jitter()
		b.y = cy + s.jitter()
		index[n.ID] = len(bodies)
		bodies = append(bodies, b)
		added = true
	}

	springs := make([]spring, 0, len(links))
	for _, l := range links {
		si, ok1 := index[l.SourceID]
		ti, ok2 := index[l.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		springs = append(springs, spring{source: si, target: ti})
	}

	s.bodies, s.index, s.links = bodies, index, springs
	if added {
		s.Restart()
	}
}

func (s *Simulation) jitter() float64 {
	return (s.rng.Float64()*2 - 1) * placementJitter
}

// Tick advances the simulation by one step and reports whether it is still
// running afterwards. A cooled simulation does nothing.
func (s *Simulation) Tick() bool {
	if !s.running {
		return false
	}
	p := s.params
	a := s.alpha

	// Springs pull linked nodes toward the rest length, split evenly.
	for _, l := range s.links {
		src, tgt := s.bodies[l.source], s.bodies[l.target]
		dx := tgt.x - src.x
		dy := tgt.y - src.y
		d := math.Sqrt(dx*dx + dy*dy)
		if d == 0 {
			continue
		}
		f := a * p.LinkStrength * (d - p.LinkDistance) / d
		dx *= f * 0.5
		dy *= f * 0.5
		tgt.vx -= dx
		tgt.vy -= dy
		src.vx += dx
		src.vy += dy
	}

	if p.Gravity != 0 {
		k := a * p.Gravity
		cx, cy := s.width/2, s.height/2
		for _, b := range s.bodies {
			b.vx += (cx - b.x) * k
			b.vy += (cy - b.y) * k
		}
	}

	if p.Charge != 0 {
		for i := 0; i < len(s.bodies); i++ {
			bi := s.bodies[i]
			for j := i + 1; j < len(s.bodies); j++ {
				bj := s.bodies[j]
				dx := bj.x - bi.x
				dy := bj.y - bi.y
				if dx == 0 && dy == 0 {
					dx, dy = s.jitter()*0.1, s.jitter()*0.1
				}
				d2 := dx*dx + dy*dy + 0.01
				k := a * p.Charge / d2
				bi.vx += dx * k
				bi.vy += dy * k
				bj.vx -= dx * k
				bj.vy -= dy * k
			}
		}
	}

	for _, b := range s.bodies {
		b.vx *= p.Friction
		b.vy *= p.Friction
		b.x += b.vx
		b.y += b.vy
	}

	s.ticks++
	s.alpha *= alphaDecay
	if s.alpha < alphaMin {
		s.alpha = 0
		s.running = false
	}
	return s.running
}

// Restart reheats the simulation
func (s *Simulation) Restart() {
	s.alpha = alphaStart
	s.running = true
}

// Running reports whether ticks still move nodes
func (s *Simulation) Running() bool {
	return s.running
}

// Alpha returns the current temperature
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// Ticks returns the number of steps taken so far
func (s *Simulation) Ticks() uint64 {
	return s.ticks
}

// Params returns the active parameters
func (s *Simulation) Params() Params {
	return s.params
}

// SetParams swaps the force parameters. The caller decides whether to Restart.
func (s *Simulation) SetParams(p Params) {
	s.params = p.WithDefaults()
}

// Resize changes the bounds the gravity centre is derived from
func (s *Simulation) Resize(width, height float64) {
	s.width, s.height = width, height
}

// Size returns the current bounds
func (s *Simulation) Size() (float64, float64) {
	return s.width, s.height
}

// Position returns the position of one node
func (s *Simulation) Position(id string) (domain.Position, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Position{}, false
	}
	b := s.bodies[i]
	return domain.Position{X: b.x, Y: b.y}, true
}

// Positions returns every placed node keyed by id
func (s *Simulation) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(s.bodies))
	for _, b := range s.bodies {
		out[b.id] = domain.Position{X: b.x, Y: b.y}
	}
	return out
}

// Len returns the number of simulated nodes
func (s *Simulation) Len() int {
	return len(s.bodies)
}
