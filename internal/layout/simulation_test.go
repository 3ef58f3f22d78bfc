package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"butterfly/internal/domain"
)

func node(id string) domain.Node {
	n := domain.NewNode("k-"+id, domain.DisplayFields{})
	n.ID = id
	return n
}

func dist(a, b domain.Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestSyncPlacesNewNodes(t *testing.T) {
	sim := New(DefaultParams(), 800, 600, 1)
	sim.Sync([]domain.Node{node("n0")}, nil)

	p, ok := sim.Position("n0")
	require.True(t, ok)
	assert.InDelta(t, 400, p.X, placementJitter)
	assert.InDelta(t, 300, p.Y, placementJitter)
	assert.True(t, sim.Running())

	_, ok = sim.Position("missing")
	assert.False(t, ok)
}

func TestSyncPlacesChildNearSource(t *testing.T) {
	sim := New(DefaultParams(), 800, 600, 1)
	sim.Sync([]domain.Node{node("n0")}, nil)
	for sim.Tick() {
	}
	src, _ := sim.Position("n0")

	sim.Sync(
		[]domain.Node{node("n0"), node("n1")},
		[]domain.Link{domain.NewLink("n0", "n1", "")},
	)
	child, ok := sim.Position("n1")
	require.True(t, ok)
	assert.LessOrEqual(t, dist(src, child), placementJitter*math.Sqrt2)
}

func TestSyncPreservesExistingPositions(t *testing.T) {
	sim := New(DefaultParams(), 800, 600, 7)
	nodes := []domain.Node{node("n0"), node("n1")}
	links := []domain.Link{domain.NewLink("n0", "n1", "")}
	sim.Sync(nodes, links)
	for i := 0; i < 20; i++ {
		sim.Tick()
	}
	before := sim.Positions()

	sim.Sync(append(nodes, node("n2")), append(links, domain.NewLink("n0", "n2", "")))
	after := sim.Positions()

	for id, p := range before {
		assert.Equal(t, p, after[id], "node %s moved during sync", id)
	}
	assert.Len(t, after, 3)
}

func TestTickCoolsDown(t *testing.T) {
	sim := New(DefaultParams(), 800, 600, 1)
	sim.Sync([]domain.Node{node("n0"), node("n1")}, nil)

	steps := 0
	for sim.Tick() {
		steps++
		require.Less(t, steps, 10000)
	}
	assert.False(t, sim.Running())
	assert.False(t, sim.Tick())

	sim.Restart()
	assert.True(t, sim.Running())
	assert.InDelta(t, alphaStart, sim.Alpha(), 1e-9)
}

func TestRepulsionSeparatesNodes(t *testing.T) {
	p := DefaultParams()
	p.Gravity = 0
	sim := New(p, 800, 600, 3)
	sim.Sync([]domain.Node{node("n0"), node("n1")}, nil)
	a, _ := sim.Position("n0")
	b, _ := sim.Position("n1")
	start := dist(a, b)

	for i := 0; i < 10; i++ {
		sim.Tick()
	}
	a, _ = sim.Position("n0")
	b, _ = sim.Position("n1")
	assert.Greater(t, dist(a, b), start)
}

func TestSpringPullsTowardRestLength(t *testing.T) {
	p := DefaultParams()
	p.Charge = 0
	p.Gravity = 0
	p.LinkDistance = 50
	sim := New(p, 2000, 2000, 3)
	sim.Sync([]domain.Node{node("n0"), node("n1")}, nil)
	sim.bodies[1].x = sim.bodies[0].x + 500
	sim.bodies[1].y = sim.bodies[0].y
	sim.Sync([]domain.Node{node("n0"), node("n1")}, []domain.Link{domain.NewLink("n0", "n1", "")})

	for sim.Tick() {
	}
	a, _ := sim.Position("n0")
	b, _ := sim.Position("n1")
	assert.Less(t, dist(a, b), 500.0)
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func() map[string]domain.Position {
		sim := New(ExpandedParams(), 800, 600, 42)
		sim.Sync(
			[]domain.Node{node("n0"), node("n1"), node("n2")},
			[]domain.Link{domain.NewLink("n0", "n1", ""), domain.NewLink("n0", "n2", "")},
		)
		for i := 0; i < 50; i++ {
			sim.Tick()
		}
		return sim.Positions()
	}
	assert.Equal(t, run(), run())
}

func TestParams(t *testing.T) {
	assert.Equal(t, -170.0, DefaultParams().Charge)
	assert.Equal(t, 0.4, DefaultParams().Friction)
	assert.Equal(t, -4000.0, ExpandedParams().Charge)
	assert.Equal(t, 0.7, ExpandedParams().Friction)
	assert.Equal(t, 220.0, ExpandedParams().LinkDistance)

	sim := New(Params{Charge: -10}, 100, 100, 1)
	assert.Equal(t, 0.4, sim.Params().Friction)
	sim.SetParams(ExpandedParams())
	assert.Equal(t, ExpandedParams(), sim.Params())
}
