package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

type fakePanel struct {
	set     []domain.DisplayFields
	cleared int
}

func (p *fakePanel) Set(f domain.DisplayFields) { p.set = append(p.set, f) }
func (p *fakePanel) Clear()                     { p.cleared++ }

func seededGraph(t *testing.T) (*domain.Graph, domain.Node) {
	t.Helper()
	g := domain.NewGraph()
	seed, err := g.AddSeed(domain.NewNode("a", domain.DisplayFields{Headline: "Seed story", Date: "01 Jan 2010"}))
	require.NoError(t, err)
	return g, seed
}

func expand(t *testing.T, g *domain.Graph, origin string, keys ...string) []domain.Node {
	t.Helper()
	p, err := g.BeginExpansion(origin)
	require.NoError(t, err)
	var nodes []domain.Node
	var links []domain.Link
	for i, k := range keys {
		n := domain.NewNode(k, domain.DisplayFields{Headline: k, DateDifference: "2 days later"})
		n.ID = string(rune('A' + i))
		nodes = append(nodes, n)
		links = append(links, domain.NewLink(origin, n.ID, n.Fields.DateDifference))
	}
	inserted, err := g.CommitExpansion(p, nodes, links)
	require.NoError(t, err)
	return inserted
}

func keys(elems []Element) []string {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		out = append(out, e.Key)
	}
	return out
}

func TestReconcileFirstPass(t *testing.T) {
	g, seed := seededGraph(t)
	b := NewBinder(nil, nil, Options{}, nil)

	patch := b.Reconcile(g)
	assert.Equal(t, 1, patch.Pass)
	assert.Len(t, patch.Added, 3)
	assert.Empty(t, patch.Demoted)
	assert.Equal(t, 1, b.BoundHandlers())

	label, ok := b.Element(elementKey(KindNodeLabel, seed.ID))
	require.True(t, ok)
	assert.True(t, label.Fresh)
	assert.True(t, label.Starter)
	assert.Equal(t, "Seed story", label.Text)
}

func TestReconcileIsKeyed(t *testing.T) {
	g, seed := seededGraph(t)
	b := NewBinder(nil, nil, Options{}, nil)
	b.Reconcile(g)
	b.MarkClicked(seed.ID)

	kids := expand(t, g, seed.ID, "b", "c")
	patch := b.Reconcile(g)

	assert.Len(t, patch.Added, 2*3+2*2)
	assert.Empty(t, patch.Removed)
	assert.Contains(t, patch.Demoted, elementKey(KindNodeLabel, seed.ID))
	assert.Equal(t, 3, b.BoundHandlers())

	// The seed circle survived with its marker and picked up the new state.
	circle, _ := b.NodeElement(seed.ID)
	assert.True(t, circle.Clicked)
	assert.Equal(t, domain.StateExpanded, circle.State)
	assert.Equal(t, []string{circle.Key}, keys(patch.Updated))

	for _, k := range kids {
		l, ok := b.Element(elementKey(KindNodeLabel, k.ID))
		require.True(t, ok)
		assert.True(t, l.Fresh)
		assert.False(t, l.Starter)
	}
	linkLabel, ok := b.Element(elementKey(KindLinkLabel, seed.ID+"-"+kids[0].ID))
	require.True(t, ok)
	assert.Equal(t, "2 days later", linkLabel.Text)
}

func TestReconcileDemotesPreviousPass(t *testing.T) {
	g, seed := seededGraph(t)
	b := NewBinder(nil, nil, Options{}, nil)
	b.Reconcile(g)
	kids := expand(t, g, seed.ID, "b")
	b.Reconcile(g)
	expand(t, g, kids[0].ID, "c")
	patch := b.Reconcile(g)

	assert.ElementsMatch(t, []string{
		elementKey(KindNodeLabel, kids[0].ID),
		elementKey(KindLinkLabel, seed.ID+"-"+kids[0].ID),
	}, patch.Demoted)
}

func TestReconcileKeepsFreshLabelsOnEmptyExpansion(t *testing.T) {
	g, seed := seededGraph(t)
	b := NewBinder(nil, nil, Options{}, nil)
	b.Reconcile(g)
	kids := expand(t, g, seed.ID, "b")
	b.Reconcile(g)

	p, err := g.BeginExpansion(kids[0].ID)
	require.NoError(t, err)
	require.NoError(t, g.CompleteEmpty(p))
	patch := b.Reconcile(g)

	assert.False(t, patch.Structural())
	assert.Empty(t, patch.Demoted)
	assert.Equal(t, []string{elementKey(KindNode, kids[0].ID)}, keys(patch.Updated))

	for _, key := range []string{
		elementKey(KindNodeLabel, kids[0].ID),
		elementKey(KindLinkLabel, seed.ID+"-"+kids[0].ID),
	} {
		e, ok := b.Element(key)
		require.True(t, ok)
		assert.True(t, e.Fresh, key)
	}
}

func TestReconcileUnchangedVersion(t *testing.T) {
	g, _ := seededGraph(t)
	b := NewBinder(nil, nil, Options{}, nil)
	b.Reconcile(g)

	patch := b.Reconcile(g)
	assert.True(t, patch.Empty())
	assert.Equal(t, 1, patch.Pass)
	assert.Equal(t, 1, b.BoundHandlers())
}

func TestHoverAndUnhover(t *testing.T) {
	tests := []struct {
		name        string
		clear       bool
		wantCleared int
	}{
		{"panel kept on hover out", false, 0},
		{"panel cleared on hover out", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, seed := seededGraph(t)
			panel := &fakePanel{}
			b := NewBinder(panel, nil, Options{ClearOnHoverOut: tt.clear}, nil)
			b.Reconcile(g)

			require.NoError(t, b.Hover(seed.ID))
			require.Len(t, panel.set, 1)
			assert.Equal(t, "Seed story", panel.set[0].Headline)

			require.NoError(t, b.Unhover(seed.ID))
			assert.Equal(t, tt.wantCleared, panel.cleared)
		})
	}
}

func TestClick(t *testing.T) {
	g, seed := seededGraph(t)
	var clicks []string
	b := NewBinder(nil, func(id string) { clicks = append(clicks, id) }, Options{}, nil)

	err := b.Click(seed.ID)
	assert.True(t, errors.Is(err, ErrUnbound))

	b.Reconcile(g)
	require.NoError(t, b.Click(seed.ID))
	assert.Equal(t, []string{seed.ID}, clicks)

	b.MarkClicked(seed.ID)
	require.NoError(t, b.Click(seed.ID))
	assert.Len(t, clicks, 1)

	b.ClearClicked(seed.ID)
	require.NoError(t, b.Click(seed.ID))
	assert.Len(t, clicks, 2)
}

func TestFrame(t *testing.T) {
	g, seed := seededGraph(t)
	b := NewBinder(nil, nil, Options{}, nil)
	b.Reconcile(g)
	kids := expand(t, g, seed.ID, "b")
	b.Reconcile(g)

	positions := map[string]domain.Position{
		seed.ID:    {X: 100, Y: 100},
		kids[0].ID: {X: 200, Y: 300},
	}
	f := b.Frame(positions, Offset{})
	byKey := make(map[string]Placement, len(f.Placements))
	for _, p := range f.Placements {
		byKey[p.Key] = p
	}

	assert.Equal(t, Placement{Key: elementKey(KindNode, seed.ID), X: 100, Y: 100}, byKey[elementKey(KindNode, seed.ID)])
	assert.Equal(t, Placement{Key: elementKey(KindNodeLabel, seed.ID), X: 119, Y: 109}, byKey[elementKey(KindNodeLabel, seed.ID)])
	assert.Equal(t, Placement{Key: elementKey(KindNodeDate, seed.ID), X: 119, Y: 96}, byKey[elementKey(KindNodeDate, seed.ID)])

	lk := seed.ID + "-" + kids[0].ID
	assert.Equal(t, Placement{Key: elementKey(KindLink, lk), X: 100, Y: 100, X2: 200, Y2: 300}, byKey[elementKey(KindLink, lk)])
	assert.Equal(t, Placement{Key: elementKey(KindLinkLabel, lk), X: 145, Y: 200}, byKey[elementKey(KindLinkLabel, lk)])
	assert.Len(t, f.Placements, 8)

	t.Run("unplaced nodes omitted", func(t *testing.T) {
		f := b.Frame(map[string]domain.Position{seed.ID: {X: 1, Y: 1}}, Offset{})
		assert.Len(t, f.Placements, 3)
	})

	t.Run("offset", func(t *testing.T) {
		f := b.Frame(map[string]domain.Position{seed.ID: {X: 1, Y: 1}}, Drift(Offset{DX: 22, DY: 33}, 2))
		assert.Equal(t, 45.0, f.Placements[0].X)
		assert.Equal(t, 67.0, f.Placements[0].Y)
	})
}
