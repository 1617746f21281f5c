package cartomesh

import (
	"github.com/LynnColeArt/cartomesh/diag"
	"github.com/LynnColeArt/cartomesh/dtype"
	"github.com/LynnColeArt/cartomesh/substrate"
)

// Splitter derives a rectangular Cartesian process grid of arbitrary rank
// from a flat origin communicator, resolving rank/coordinate pairs and the
// full first-neighbor offset table on construction. It is the sole
// constructor of Descriptor: descriptor geometry depends on splitter
// state, but a Descriptor stores only the values it derives, never a
// back-reference, so a Splitter may outlive or be closed independently of
// descriptors built from stale state (tests are expected to close
// descriptors first).
//
// A Splitter is not safe to copy; pass it by pointer.
type Splitter struct {
	origin substrate.Comm
	sub    substrate.Comm // the color-0 (in-grid) communicator Split produced; owned, released by Close
	cart   substrate.CartComm

	dims       []int
	periods    []bool
	reorder    bool
	inGrid     bool
	rank       substrate.Rank
	coords     []int
	directions [][]int

	destNeighbours []substrate.Rank
	srcNeighbours  []substrate.Rank

	_ noCopy
}

// noCopy embeds into a type to let vet's copylock analysis flag accidental
// copies; it has no methods of its own, only a Lock/Unlock pair that vet
// recognizes.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// NewSplitter derives a Cartesian grid of the given dims and per-axis
// periodicity from origin. Peers beyond prod(dims) are split off into a
// non-grid group and returned with InGrid() == false; they hold no further
// resources and must not call any grid-dependent method.
func NewSplitter(origin substrate.Comm, dims []int, periods []bool, reorder bool) (*Splitter, error) {
	if len(dims) != len(periods) {
		return nil, errShapeMismatch("NewSplitter", "dims and periods must have equal length")
	}
	need := Prod(dims)
	if need > origin.Size() {
		return nil, errInsufficientPeers("NewSplitter", need, origin.Size())
	}

	color := 0
	if origin.Rank() >= substrate.Rank(need) {
		color = 1
	}
	sub, err := origin.Split(color, int(origin.Rank()))
	if err != nil {
		return nil, errTransport("NewSplitter", err)
	}

	sp := &Splitter{
		origin:     origin,
		dims:       append([]int(nil), dims...),
		periods:    append([]bool(nil), periods...),
		reorder:    reorder,
		inGrid:     color == 0,
		directions: enumerateDirections(len(dims)),
	}
	if !sp.inGrid {
		sub.Free()
		return sp, nil
	}

	cart, err := sub.CartCreate(dims, periods, reorder)
	if err != nil {
		sub.Free()
		return nil, errTransport("NewSplitter", err)
	}
	sp.sub = sub
	sp.cart = cart
	sp.rank = cart.Rank()

	coords, err := cart.Coords(sp.rank)
	if err != nil {
		cart.Free()
		sub.Free()
		return nil, errTransport("NewSplitter", err)
	}
	sp.coords = coords

	sp.destNeighbours = make([]substrate.Rank, len(sp.directions))
	sp.srcNeighbours = make([]substrate.Rank, len(sp.directions))
	for i, d := range sp.directions {
		sp.destNeighbours[i] = sp.RankOf(Add(coords, d))
		sp.srcNeighbours[i] = sp.RankOf(Sub(coords, d))
	}

	diag.GridFormed(int(sp.rank), sp.dims, sp.coords)

	return sp, nil
}

// enumerateDirections returns, in the §4.3 enumeration order, all 3^d − 1
// non-zero combinations of {-1, +1, 0} over d axes: axis 0 varies fastest,
// the all-zero combination (the final lexicographic entry) is omitted.
func enumerateDirections(d int) [][]int {
	alphabet := []int{-1, +1, 0}
	total := 1
	for i := 0; i < d; i++ {
		total *= 3
	}
	dirs := make([][]int, 0, total-1)
	for i := 0; i < total-1; i++ {
		v := make([]int, d)
		rem := i
		for axis := 0; axis < d; axis++ {
			v[axis] = alphabet[rem%3]
			rem /= 3
		}
		dirs = append(dirs, v)
	}
	return dirs
}

// InGrid reports whether this peer is a member of the Cartesian grid.
func (s *Splitter) InGrid() bool { return s.inGrid }

// Rank returns this peer's rank within the grid. Calling Rank on a
// non-member peer panics; check InGrid first.
func (s *Splitter) Rank() substrate.Rank {
	s.mustInGrid("Rank")
	return s.rank
}

// Size returns prod(dims), the number of peers in the grid.
func (s *Splitter) Size() int { return Prod(s.dims) }

// Dims returns the grid dimensions.
func (s *Splitter) Dims() []int { return append([]int(nil), s.dims...) }

// Coords returns this peer's grid coordinates. Calling Coords on a
// non-member peer panics; check InGrid first.
func (s *Splitter) Coords() []int {
	s.mustInGrid("Coords")
	return append([]int(nil), s.coords...)
}

// Directions returns the fixed neighbor-offset enumeration, length
// 3^D − 1.
func (s *Splitter) Directions() [][]int { return s.directions }

// DestNeighbours returns, parallel to Directions, the rank at
// coords+directions[i], or NullPeer if that coordinate leaves the grid on
// a non-periodic axis.
func (s *Splitter) DestNeighbours() []substrate.Rank {
	s.mustInGrid("DestNeighbours")
	return append([]substrate.Rank(nil), s.destNeighbours...)
}

// SrcNeighbours returns, parallel to Directions, the rank at
// coords-directions[i].
func (s *Splitter) SrcNeighbours() []substrate.Rank {
	s.mustInGrid("SrcNeighbours")
	return append([]substrate.Rank(nil), s.srcNeighbours...)
}

// CoordsCheck reports whether c is admissible: for every axis, either that
// axis is periodic or 0 <= c[axis] < dims[axis].
func (s *Splitter) CoordsCheck(c []int) bool {
	for axis, v := range c {
		if s.periods[axis] {
			continue
		}
		if v < 0 || v >= s.dims[axis] {
			return false
		}
	}
	return true
}

// RankOf resolves grid coordinates to a rank, wrapping on periodic axes,
// or NullPeer if the coordinate is inadmissible on a non-periodic axis.
func (s *Splitter) RankOf(c []int) substrate.Rank {
	s.mustInGrid("RankOf")
	if !s.CoordsCheck(c) {
		return substrate.NullPeer
	}
	return s.rankOfUnchecked(c)
}

func (s *Splitter) rankOfUnchecked(c []int) substrate.Rank {
	wrapped := Mod(c, s.dims)
	r, err := s.cart.RankOfCoords(wrapped)
	if err != nil {
		return substrate.NullPeer
	}
	return r
}

// RankByOffset resolves this peer's coordinates plus offset to a rank.
func (s *Splitter) RankByOffset(offset []int) substrate.Rank {
	s.mustInGrid("RankByOffset")
	return s.RankOf(Add(s.coords, offset))
}

// CoordsOf returns the grid coordinates of the given rank.
func (s *Splitter) CoordsOf(rank substrate.Rank) ([]int, error) {
	if !s.inGrid {
		return nil, errNotInGrid("CoordsOf")
	}
	if rank < 0 || int(rank) >= s.Size() {
		return nil, errOutOfRange("CoordsOf", "rank out of range")
	}
	c, err := s.cart.Coords(rank)
	if err != nil {
		return nil, errTransport("CoordsOf", err)
	}
	return c, nil
}

// Barrier synchronizes every in-grid peer.
func (s *Splitter) Barrier() {
	s.mustInGrid("Barrier")
	s.cart.Barrier()
}

// Bcast distributes count elements of primitive prim from root's buf to
// every in-grid peer's buf.
func (s *Splitter) Bcast(buf any, count int, prim dtype.Primitive, root substrate.Rank) error {
	s.mustInGrid("Bcast")
	ptr := bufPointer(buf)
	if err := s.cart.Bcast(ptr, count, prim, root); err != nil {
		return errTransport("Bcast", err)
	}
	return nil
}

// EvalDimsOffsets computes, for every peer in the grid, the interior tile
// extent and origin the partition law of §3 assigns it for a global array
// shaped dataDims.
func (s *Splitter) EvalDimsOffsets(dataDims []int) (subSizes, starts [][]int, err error) {
	if len(dataDims) != len(s.dims) {
		return nil, nil, errShapeMismatch("EvalDimsOffsets", "data_dims rank must match grid rank")
	}
	n := s.Size()
	subSizes = make([][]int, n)
	starts = make([][]int, n)
	for rank := 0; rank < n; rank++ {
		coords, cerr := s.CoordsOf(substrate.Rank(rank))
		if cerr != nil {
			return nil, nil, cerr
		}
		ss := make([]int, len(dataDims))
		st := make([]int, len(dataDims))
		for d := range dataDims {
			q := dataDims[d] / s.dims[d]
			r := dataDims[d] % s.dims[d]
			if coords[d] < r {
				ss[d] = q + 1
			} else {
				ss[d] = q
			}
			st[d] = coords[d]*q + min(coords[d], r)
		}
		subSizes[rank] = ss
		starts[rank] = st
	}
	return subSizes, starts, nil
}

// Close releases the Cartesian communicator and the intermediate split
// communicator it was built from. Close is safe to call on a non-member
// peer, whose off-grid communicator was already freed during
// construction.
func (s *Splitter) Close() error {
	var firstErr error
	if s.cart != nil {
		if err := s.cart.Free(); err != nil {
			firstErr = errTransport("Close", err)
		}
	}
	if s.sub != nil {
		if err := s.sub.Free(); err != nil && firstErr == nil {
			firstErr = errTransport("Close", err)
		}
	}
	return firstErr
}

func (s *Splitter) mustInGrid(op string) {
	if !s.inGrid {
		panic(errNotInGrid(op))
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
