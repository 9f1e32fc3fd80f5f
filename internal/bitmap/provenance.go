package bitmap

import "image/color"

// LoadedFrom records where a delivered image came from.
type LoadedFrom int

const (
	Memory LoadedFrom = iota
	Disk
	Network
)

func (f LoadedFrom) String() string {
	switch f {
	case Memory:
		return "memory"
	case Disk:
		return "disk"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// DebugColor is the indicator colour overlay tooling paints on images
// delivered from this source.
func (f LoadedFrom) DebugColor() color.RGBA {
	switch f {
	case Memory:
		return color.RGBA{G: 0xff, A: 0xff}
	case Disk:
		return color.RGBA{B: 0xff, A: 0xff}
	default:
		return color.RGBA{R: 0xff, A: 0xff}
	}
}

// ParseLoadedFrom maps a provenance name back to its value.
func ParseLoadedFrom(s string) (LoadedFrom, bool) {
	switch s {
	case "memory":
		return Memory, true
	case "disk":
		return Disk, true
	case "network":
		return Network, true
	}
	return 0, false
}
