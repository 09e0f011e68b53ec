package market

// Direction is a discrete trade direction: -1 short, 0 flat, +1 long.
type Direction int8

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = +1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Float returns the direction as -1, 0 or 1.
func (d Direction) Float() float64 {
	return float64(d)
}

// Opposite returns the reverse direction; Flat stays Flat.
func (d Direction) Opposite() Direction {
	return -d
}

// DirectionOf maps the sign of x to a Direction.
func DirectionOf(x float64) Direction {
	switch {
	case x > 0:
		return Long
	case x < 0:
		return Short
	default:
		return Flat
	}
}
