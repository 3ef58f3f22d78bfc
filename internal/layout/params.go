package layout

// Params are the tunable forces of the simulation
type Params struct {
	Charge       float64 `yaml:"charge" json:"charge"`               // Negative repels
	Friction     float64 `yaml:"friction" json:"friction"`           // Velocity retained per tick, 0..1
	LinkDistance float64 `yaml:"link_distance" json:"link_distance"` // Spring rest length
	LinkStrength float64 `yaml:"link_strength" json:"link_strength"`
	Gravity      float64 `yaml:"gravity" json:"gravity"` // Pull toward the bounds centre
}

// DefaultParams is the layout used while the graph holds only the seed
func DefaultParams() Params {
	return Params{
		Charge:       -170,
		Friction:     0.4,
		LinkDistance: 220,
		LinkStrength: 1,
		Gravity:      0.1,
	}
}

// ExpandedParams spreads a graph out once exploration has started
func ExpandedParams() Params {
	p := DefaultParams()
	p.Charge = -4000
	p.Friction = 0.7
	return p
}

// WithDefaults fills zero fields from DefaultParams. Charge and Gravity may
// legitimately be zero so only the spring and damping are filled.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Friction == 0 {
		p.Friction = d.Friction
	}
	if p.LinkDistance == 0 {
		p.LinkDistance = d.LinkDistance
	}
	if p.LinkStrength == 0 {
		p.LinkStrength = d.LinkStrength
	}
	return p
}
