package cartomesh

import (
	"github.com/LynnColeArt/cartomesh/dtype"
	"github.com/LynnColeArt/cartomesh/substrate"
)

// Descriptor holds the geometry and pre-built strided views a Splitter
// derives for one global shape and halo policy: every peer's interior
// tile, this peer's effective halo widths and local buffer shape, and the
// view handles scatter/gather/halo-update dispatch against. A Descriptor
// stores only values — it never keeps a reference back to the Splitter
// that built it, so a descriptor may be closed independently of (and
// before) its splitter.
//
// A Descriptor is not safe to copy; pass it by pointer.
type Descriptor[T dtype.Element] struct {
	globalDims []int
	subSizes   [][]int
	starts     [][]int

	haloPre, haloPost           []int
	localHaloPre, localHaloPost []int

	localDims     []int
	localSubSizes []int
	localStarts   []int

	rank  substrate.Rank
	types []substrate.View // indexed by peer rank, root-side scatter/gather
	localType substrate.View

	sendTypes []substrate.View // indexed by direction
	recvTypes []substrate.View

	resources *resourceSet

	_ noCopy
}

// NewDescriptor builds a Descriptor for the given global shape and halo
// policy over sp's grid. haloPre and haloPost may each be given per-axis
// (length equal to the grid rank) or as a single-element slice broadcast
// across every axis. NewDescriptor must be called by every in-grid peer.
func NewDescriptor[T dtype.Element](sp *Splitter, dataDims []int, haloPre, haloPost []int, haloType HaloType) (*Descriptor[T], error) {
	sp.mustInGrid("NewDescriptor")
	d := len(sp.dims)

	pre, err := broadcastHalo(haloPre, d)
	if err != nil {
		return nil, err
	}
	post, err := broadcastHalo(haloPost, d)
	if err != nil {
		return nil, err
	}
	if haloType == HaloUnused {
		// Unused forces both the effective and the requested halo vectors
		// to all zeros.
		pre = make([]int, d)
		post = make([]int, d)
	}

	subSizes, starts, err := sp.EvalDimsOffsets(dataDims)
	if err != nil {
		return nil, err
	}

	prim := dtype.PrimitiveOf[T]()
	resources := newResourceSet()

	desc := &Descriptor[T]{
		globalDims: append([]int(nil), dataDims...),
		subSizes:   subSizes,
		starts:     starts,
		haloPre:    pre,
		haloPost:   post,
		rank:       sp.rank,
		resources:  resources,
	}

	types := make([]substrate.View, sp.Size())
	for p := 0; p < sp.Size(); p++ {
		v, err := sp.cart.NewView(prim, dataDims, subSizes[p], starts[p])
		if err != nil {
			resources.Close()
			return nil, errTransport("NewDescriptor", err)
		}
		resources.track(v)
		types[p] = v
	}
	desc.types = types

	localHaloPre, localHaloPost := applyHaloPolicy(haloType, pre, post, sp.coords, sp.dims)
	desc.localHaloPre = localHaloPre
	desc.localHaloPost = localHaloPost

	mySub := subSizes[sp.rank]
	desc.localSubSizes = mySub
	desc.localDims = Add(Add(mySub, localHaloPre), localHaloPost)
	desc.localStarts = localHaloPre

	localType, err := sp.cart.NewView(prim, desc.localDims, desc.localSubSizes, desc.localStarts)
	if err != nil {
		resources.Close()
		return nil, errTransport("NewDescriptor", err)
	}
	resources.track(localType)
	desc.localType = localType

	n := len(sp.directions)
	desc.sendTypes = make([]substrate.View, n)
	desc.recvTypes = make([]substrate.View, n)
	for i, dir := range sp.directions {
		recvLo, recvHi, recvOK, err := haloStrip(dir, desc.localStarts, desc.localSubSizes, desc.localDims, localHaloPre, localHaloPost, true)
		if err != nil {
			resources.Close()
			return nil, err
		}
		sendLo, sendHi, sendOK, err := haloStrip(dir, desc.localStarts, desc.localSubSizes, desc.localDims, pre, post, false)
		if err != nil {
			resources.Close()
			return nil, err
		}

		if recvOK {
			v, err := sp.cart.NewView(prim, desc.localDims, Sub(recvHi, recvLo), recvLo)
			if err != nil {
				resources.Close()
				return nil, errTransport("NewDescriptor", err)
			}
			resources.track(v)
			desc.recvTypes[i] = v
		}
		if sendOK {
			v, err := sp.cart.NewView(prim, desc.localDims, Sub(sendHi, sendLo), sendLo)
			if err != nil {
				resources.Close()
				return nil, errTransport("NewDescriptor", err)
			}
			resources.track(v)
			desc.sendTypes[i] = v
		}
	}

	return desc, nil
}

func broadcastHalo(h []int, d int) ([]int, error) {
	switch len(h) {
	case d:
		return append([]int(nil), h...), nil
	case 1:
		out := make([]int, d)
		for i := range out {
			out[i] = h[0]
		}
		return out, nil
	default:
		return nil, errShapeMismatch("NewDescriptor", "halo width must be length 1 or match grid rank")
	}
}

// applyHaloPolicy derives this peer's effective halo widths from the
// requested widths under the given policy.
func applyHaloPolicy(haloType HaloType, pre, post, coords, gridDims []int) (localPre, localPost []int) {
	d := len(coords)
	localPre = make([]int, d)
	localPost = make([]int, d)
	switch haloType {
	case HaloUnused:
		// leave both at zero
	case HaloFull:
		copy(localPre, pre)
		copy(localPost, post)
	case HaloTight:
		for axis := 0; axis < d; axis++ {
			if coords[axis] != 0 {
				localPre[axis] = pre[axis]
			}
			if coords[axis] != gridDims[axis]-1 {
				localPost[axis] = post[axis]
			}
		}
	}
	return localPre, localPost
}

// haloStrip computes the [lo, hi) geometry of the receive or send strip
// for direction o, per the §4.4 table. Receive strips use the effective
// (local) halo widths; send strips use the requested widths. ok is false
// when the resulting shape has zero volume on some axis, meaning no view
// should be built and the exchange on this direction is a no-op.
func haloStrip(o, localStarts, localSubSizes, localDims, haloPre, haloPost []int, isRecv bool) (lo, hi []int, ok bool, err error) {
	d := len(o)
	lo = make([]int, d)
	hi = make([]int, d)
	ok = true
	for axis := 0; axis < d; axis++ {
		I := localStarts[axis]
		S := localSubSizes[axis]
		L := localDims[axis]
		switch o[axis] {
		case +1:
			if isRecv {
				lo[axis], hi[axis] = 0, I
			} else {
				lo[axis], hi[axis] = I+S-haloPre[axis], I+S
			}
		case 0:
			lo[axis], hi[axis] = I, I+S
		case -1:
			if isRecv {
				lo[axis], hi[axis] = I+S, L
			} else {
				lo[axis], hi[axis] = I, I+haloPost[axis]
			}
		default:
			return nil, nil, false, errInvalidOffset("haloStrip", o)
		}
		if hi[axis]-lo[axis] <= 0 {
			ok = false
		}
	}
	return lo, hi, ok, nil
}

// LocalSize returns the element count of this peer's local buffer
// (interior plus halos).
func (d *Descriptor[T]) LocalSize() int { return Prod(d.localDims) }

// TotalSize returns the element count of the global array.
func (d *Descriptor[T]) TotalSize() int { return Prod(d.globalDims) }

// LocalDims returns this peer's local buffer shape.
func (d *Descriptor[T]) LocalDims() []int { return append([]int(nil), d.localDims...) }

// LocalSubSizes returns this peer's interior tile shape.
func (d *Descriptor[T]) LocalSubSizes() []int { return append([]int(nil), d.localSubSizes...) }

// LocalHaloWidths returns this peer's effective pre/post halo widths.
func (d *Descriptor[T]) LocalHaloWidths() (pre, post []int) {
	return append([]int(nil), d.localHaloPre...), append([]int(nil), d.localHaloPost...)
}

// Validate performs a non-hot-path sanity check of every peer's interior
// tile against the partition law of §3: extent and origin must match what
// the law dictates from that peer's grid coordinates, for every axis. It
// is meant for tests and diagnostics, not for the collectives themselves.
func (d *Descriptor[T]) Validate(gridDims []int) error {
	dims := len(d.globalDims)
	for p := range d.subSizes {
		coords := unravelRank(p, gridDims)
		for axis := 0; axis < dims; axis++ {
			q := d.globalDims[axis] / gridDims[axis]
			r := d.globalDims[axis] % gridDims[axis]
			want := q
			if coords[axis] < r {
				want = q + 1
			}
			if d.subSizes[p][axis] != want {
				return errOutOfRange("Validate", "peer tile extent disagrees with the partition law")
			}
			wantStart := coords[axis]*q + min(coords[axis], r)
			if d.starts[p][axis] != wantStart {
				return errOutOfRange("Validate", "peer tile origin disagrees with the partition law")
			}
		}
	}
	return nil
}

// unravelRank decomposes a flat rank into grid coordinates, row-major with
// the last axis fastest — the same convention every CartComm
// implementation uses for Coords.
func unravelRank(rank int, dims []int) []int {
	d := len(dims)
	coords := make([]int, d)
	for axis := d - 1; axis >= 0; axis-- {
		coords[axis] = rank % dims[axis]
		rank /= dims[axis]
	}
	return coords
}

// Close releases every view handle this descriptor owns. Close is safe to
// call before or after the owning Splitter is closed, and is idempotent.
func (d *Descriptor[T]) Close() {
	d.resources.Close()
}
