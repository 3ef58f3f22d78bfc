package scene

import "butterfly/internal/domain"

// Label placement relative to the node centre
const (
	labelDX = 19
	labelDY = 9
	dateDX  = 19
	dateDY  = -4

	linkLabelDX = -5
)

// Offset shifts a whole frame
type Offset struct {
	DX float64 `json:"dx" yaml:"dx"`
	DY float64 `json:"dy" yaml:"dy"`
}

// Drift returns the offset after passes structural passes when every pass
// shifts the scene by perPass.
func Drift(perPass Offset, passes int) Offset {
	return Offset{DX: perPass.DX * float64(passes), DY: perPass.DY * float64(passes)}
}

// Placement is where one element is drawn. Lines use both endpoints.
type Placement struct {
	Key string  `json:"key"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	X2  float64 `json:"x2,omitempty"`
	Y2  float64 `json:"y2,omitempty"`
}

// Frame is the set of placements produced for one tick
type Frame struct {
	Seq        uint64      `json:"seq"`
	Placements []Placement `json:"placements"`
}

// Frame positions every element whose node (or both link endpoints) has a
// position. Elements without one are left out of the frame.
func (b *Binder) Frame(positions map[string]domain.Position, off Offset) Frame {
	b.frames++
	f := Frame{Seq: b.frames, Placements: make([]Placement, 0, len(b.order))}

	for _, key := range b.order {
		e := b.elements[key]
		switch e.Kind {
		case KindNode, KindNodeLabel, KindNodeDate:
			p, ok := positions[e.Ref]
			if !ok {
				continue
			}
			x, y := p.X+off.DX, p.Y+off.DY
			switch e.Kind {
			case KindNodeLabel:
				x, y = x+labelDX, y+labelDY
			case KindNodeDate:
				x, y = x+dateDX, y+dateDY
			}
			f.Placements = append(f.Placements, Placement{Key: key, X: x, Y: y})

		case KindLink, KindLinkLabel:
			s, ok1 := positions[e.Source]
			t, ok2 := positions[e.Target]
			if !ok1 || !ok2 {
				continue
			}
			s, t = s.Add(domain.Position{X: off.DX, Y: off.DY}), t.Add(domain.Position{X: off.DX, Y: off.DY})
			if e.Kind == KindLink {
				f.Placements = append(f.Placements, Placement{Key: key, X: s.X, Y: s.Y, X2: t.X, Y2: t.Y})
				continue
			}
			m := s.Midpoint(t)
			f.Placements = append(f.Placements, Placement{Key: key, X: m.X + linkLabelDX, Y: m.Y})
		}
	}
	return f
}
