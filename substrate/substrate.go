// Package substrate declares the message-passing capabilities cartomesh's
// core consumes but does not implement: communicator creation with a
// Cartesian topology, rank/coordinate resolution, barrier, point-to-point
// send/receive, non-blocking send, a combined send-and-receive, and
// creation/release of strided-subarray derived views. A production
// transport (an MPI binding, a TCP-based implementation, anything that can
// satisfy these interfaces) plugs in here; substrate/localmesh is the
// in-process reference implementation cartomesh ships for its own tests and
// examples.
package substrate

import (
	"unsafe"

	"github.com/LynnColeArt/cartomesh/dtype"
)

// Rank identifies one peer within a communicator.
type Rank int

// NullPeer is the sentinel rank for an off-grid neighbor: sends to it and
// receives from it are no-ops.
const NullPeer Rank = -1

// Request is a handle to an outstanding non-blocking send. Wait blocks
// until the send has completed and the associated buffer is free for
// reuse.
type Request interface {
	Wait() error
}

// View is an opaque handle naming a strided rectangular region of a
// buffer — the substrate's derived datatype. A View is built once (row
// major, last axis contiguous) and reused across many calls against
// different base buffers; it does not own or reference any particular
// buffer. Release must be called exactly once; releasing a nil View is a
// no-op, since nil is the legal sentinel for "no transfer on this face."
type View interface {
	Release() error
}

// Comm is an origin communicator: the flat peer set a Splitter carves a
// Cartesian grid out of.
type Comm interface {
	// Rank returns this peer's rank within the origin communicator.
	Rank() Rank
	// Size returns the number of peers in the origin communicator.
	Size() int
	// Split partitions the communicator into groups by color; peers that
	// pass the same color end up in the same derived Comm, ordered within
	// the group by key. This is how a Splitter separates in-grid peers
	// from the peers left over when prod(dims) < Size().
	Split(color, key int) (Comm, error)
	// CartCreate builds a Cartesian communicator of the given dimensions
	// and per-axis periodicity over this communicator's members. reorder
	// permits the substrate to permute peer identities for locality.
	CartCreate(dims []int, periods []bool, reorder bool) (CartComm, error)
	// Free releases this communicator.
	Free() error
}

// CartComm is a communicator with an established Cartesian topology.
type CartComm interface {
	// Rank returns this peer's rank within the Cartesian communicator.
	Rank() Rank
	// Size returns prod(dims), the number of peers in the grid.
	Size() int
	// Coords returns the grid coordinates of the given rank.
	Coords(rank Rank) ([]int, error)
	// RankOfCoords resolves grid coordinates to a rank, wrapping on
	// periodic axes. Callers are expected to have already validated the
	// coordinate against non-periodic axes (see cartomesh's CoordsCheck);
	// RankOfCoords itself assumes the coordinate is admissible.
	RankOfCoords(coords []int) (Rank, error)
	// Barrier blocks until every peer in the communicator has called
	// Barrier.
	Barrier()
	// Bcast blocks until root's contents of buf have been copied into
	// every peer's buf. root's own buf is left untouched.
	Bcast(buf unsafe.Pointer, count int, prim dtype.Primitive, root Rank) error
	// NewView builds a strided-subarray derived view: extent subShape at
	// origin within a buffer shaped shape, elements laid out row-major
	// with the last axis contiguous.
	NewView(prim dtype.Primitive, shape, subShape, origin []int) (View, error)
	// Send blocks until one unit of v, read from buf, has been
	// transmitted to dest under tag.
	Send(buf unsafe.Pointer, v View, dest Rank, tag int) error
	// ISend starts a non-blocking send of one unit of v from buf to dest
	// under tag and returns a handle to await its completion.
	ISend(buf unsafe.Pointer, v View, dest Rank, tag int) (Request, error)
	// Recv blocks until one unit of v has been received from source under
	// tag and written into buf.
	Recv(buf unsafe.Pointer, v View, source Rank, tag int) error
	// SendRecv performs a paired send and receive in a single substrate
	// call, avoiding the deadlock a pair of ordinary blocking Send/Recv
	// calls could hit when two peers exchange with each other under the
	// same tag.
	SendRecv(sendBuf unsafe.Pointer, sendView View, dest Rank, sendTag int,
		recvBuf unsafe.Pointer, recvView View, source Rank, recvTag int) error
	// Free releases this communicator.
	Free() error
}
