package solar

import (
	"fmt"
	"strings"
)

// Zenith is the angle, in degrees from vertical, at which the centre of the sun is
// considered to cross the horizon.
type Zenith float64

// Zenith angles for the common sunrise/sunset conventions
const (
	Official     Zenith = 90.83
	Civil        Zenith = 96.0
	Nautical     Zenith = 102.0
	Astronomical Zenith = 108.0
)

var zenithNames = map[string]Zenith{
	"official":     Official,
	"civil":        Civil,
	"nautical":     Nautical,
	"astronomical": Astronomical,
}

// ParseZenith maps a convention name (official, civil, nautical, astronomical) to its angle.
// An empty name selects Official.
func ParseZenith(name string) (Zenith, error) {
	if name == "" {
		return Official, nil
	}
	z, ok := zenithNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown zenith %q", ErrInvalidArgument, name)
	}
	return z, nil
}

func (z Zenith) String() string {
	switch z {
	case Official:
		return "official"
	case Civil:
		return "civil"
	case Nautical:
		return "nautical"
	case Astronomical:
		return "astronomical"
	}
	return fmt.Sprintf("%.2f°", float64(z))
}
