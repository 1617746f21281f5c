// Package cartomesh configuration constants.
package cartomesh

import "strings"

// Message tags. Fixed per the wire-semantics contract: every scatter
// message carries TagScatter, every gather message TagGather, every halo
// exchange step TagHalo.
const (
	TagScatter = 100
	TagGather  = 200
	TagHalo    = 300
)

// HaloType selects how a descriptor derives each peer's effective halo
// width from the requested width.
type HaloType int

const (
	// HaloUnused forces both the requested and effective halo vectors to
	// all zeros.
	HaloUnused HaloType = iota
	// HaloFull reserves the requested halo on every face of every peer's
	// tile, including faces on the global boundary.
	HaloFull
	// HaloTight zeros the effective halo on any face that lies on the
	// global boundary along a non-wrapping view, regardless of
	// periodicity (see the Tight-policy design note).
	HaloTight
)

// String returns the halo policy's CLI token spelling.
func (h HaloType) String() string {
	switch h {
	case HaloUnused:
		return "NO"
	case HaloFull:
		return "FULL"
	case HaloTight:
		return "TIGHT"
	default:
		return "UNKNOWN"
	}
}

// ParseHaloType parses one of the case-insensitive CLI tokens NO, FULL,
// TIGHT into a HaloType.
func ParseHaloType(token string) (HaloType, error) {
	switch strings.ToUpper(token) {
	case "NO":
		return HaloUnused, nil
	case "FULL":
		return HaloFull, nil
	case "TIGHT":
		return HaloTight, nil
	default:
		return HaloUnused, errShapeMismatch("ParseHaloType", "halo type must be one of NO, FULL, TIGHT, got "+token)
	}
}

// DefaultReorder is the reorder flag the example drivers use when the
// caller does not override it: leave process placement to the substrate.
const DefaultReorder = true
