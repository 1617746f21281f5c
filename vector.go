// Package cartomesh implements a Cartesian process-grid topology and
// distributed array descriptor on top of a pluggable message-passing
// substrate: grid construction and rank/coordinate resolution
// (Splitter), per-peer tile and halo geometry (Descriptor), and the
// Scatter/Gather/HaloUpdate collectives built on top of both.
//
// Example usage:
//
//	sp, err := cartomesh.NewSplitter(comm, []int{2, 2}, []bool{false, true}, cartomesh.DefaultReorder)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sp.Close()
//
//	desc, err := cartomesh.NewDescriptor[float64](sp, globalShape, []int{1, 1}, []int{1, 1}, cartomesh.HaloFull)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer desc.Close()
package cartomesh

// Add returns the element-wise sum of a and b. a and b must have the same
// length; a length mismatch is a programmer error and Add panics.
func Add(a, b []int) []int {
	mustSameLen("Add", a, b)
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Sub returns the element-wise difference a - b. a and b must have the
// same length; a length mismatch is a programmer error and Sub panics.
func Sub(a, b []int) []int {
	mustSameLen("Sub", a, b)
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// Scale returns a copy of v with every element multiplied by k.
func Scale(v []int, k int) []int {
	out := make([]int, len(v))
	for i := range v {
		out[i] = v[i] * k
	}
	return out
}

// Prod returns the product of v's elements, or 1 if v is empty.
func Prod(v []int) int {
	p := 1
	for _, x := range v {
		p *= x
	}
	return p
}

// Equal reports whether a and b have the same length and elements.
func Equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FloorDiv returns the element-wise floor division a ÷ b, rounding toward
// negative infinity rather than truncating toward zero.
func FloorDiv(a, b []int) []int {
	mustSameLen("FloorDiv", a, b)
	out := make([]int, len(a))
	for i := range a {
		out[i] = floorDivInt(a[i], b[i])
	}
	return out
}

func floorDivInt(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod returns the element-wise floored modulus a mod b: the result always
// shares b's sign, the convention periodic-axis coordinate wrapping
// depends on.
func Mod(a, b []int) []int {
	mustSameLen("Mod", a, b)
	out := make([]int, len(a))
	for i := range a {
		out[i] = modInt(a[i], b[i])
	}
	return out
}

func modInt(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// IsDirection reports whether d is a legal first-neighbor direction
// vector: every component drawn from {-1, 0, +1} and at least one
// component nonzero.
func IsDirection(d []int) bool {
	allZero := true
	for _, c := range d {
		if c < -1 || c > 1 {
			return false
		}
		if c != 0 {
			allZero = false
		}
	}
	return !allZero
}

func mustSameLen(op string, a, b []int) {
	if len(a) != len(b) {
		panic(op + ": length mismatch")
	}
}
