package domain

// Position is a 2-D coordinate owned by the layout engine
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p shifted by o
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Midpoint returns the point halfway between p and o
func (p Position) Midpoint(o Position) Position {
	return Position{X: (p.X + o.X) / 2, Y: (p.Y + o.Y) / 2}
}
