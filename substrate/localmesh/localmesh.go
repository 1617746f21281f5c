// Package localmesh is an in-process reference implementation of
// substrate.Comm/substrate.CartComm. One goroutine per peer and one
// buffered channel per (communicator, sender, receiver, tag) triple stand
// in for the network, the way the teacher's Context/Stream pair stands in
// for a GPU that isn't there: a worker-dispatch runtime that satisfies the
// contract without any real hardware underneath it.
//
// localmesh is deliberately minimal: no serialization format, no partial
// failure handling, no network code. It exists so cartomesh's own tests and
// example drivers can run scatter/gather/halo-update deterministically
// without a real MPI installation. Production deployments plug a real
// transport in behind the substrate interfaces instead.
package localmesh

import (
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/LynnColeArt/cartomesh/dtype"
	"github.com/LynnColeArt/cartomesh/substrate"
)

// Mesh is the shared in-process fabric every peer's Comm handle is a view
// into.
type Mesh struct {
	n         int
	nextID    atomic.Uint64
	mailboxes sync.Map // mailboxKey -> chan []byte
	splits    sync.Map // splitKey -> *splitRound
	barriers  sync.Map // barrierKey -> *barrierState
}

// NewMesh creates a fabric for n peers.
func NewMesh(n int) *Mesh {
	return &Mesh{n: n}
}

// worldCommID is the fixed identity shared by every peer's root
// communicator handle. It must not be assigned by a per-call counter: each
// peer calls Mesh.Comm independently from its own goroutine, so a counter
// would hand out a different id to every peer even though they are all
// members of the same (the world) communicator.
const worldCommID = 0

// Comm returns the root communicator handle for the peer at the given rank
// in [0, n).
func (m *Mesh) Comm(rank int) substrate.Comm {
	members := make([]substrate.Rank, m.n)
	for i := range members {
		members[i] = substrate.Rank(i)
	}
	return &comm{
		tr: &transport{
			mesh:    m,
			id:      worldCommID,
			members: members,
			local:   substrate.Rank(rank),
		},
	}
}

type mailboxKey struct {
	commID   uint64
	src, dst substrate.Rank
	tag      int
}

type barrierKey struct {
	commID uint64
	round  uint64
}

type barrierState struct {
	mu      sync.Mutex
	arrived int
	want    int
	done    chan struct{}
}

// transport carries the capabilities shared by comm and cartComm: identity
// within a specific derived communicator, and the point-to-point/collective
// primitives built on the mesh's mailboxes.
type transport struct {
	mesh        *Mesh
	id          uint64
	members     []substrate.Rank // global ranks, indexed by local rank
	local       substrate.Rank   // this peer's local rank within members
	barrierSeq  atomic.Uint64
	splitSeq    atomic.Uint64
}

func (t *transport) Rank() substrate.Rank { return t.local }
func (t *transport) Size() int            { return len(t.members) }

func (t *transport) mailbox(dst substrate.Rank, tag int, reversed bool) chan []byte {
	src := t.local
	key := mailboxKey{commID: t.id, src: src, dst: dst, tag: tag}
	if reversed {
		key = mailboxKey{commID: t.id, src: dst, dst: src, tag: tag}
	}
	ch, _ := t.mesh.mailboxes.LoadOrStore(key, make(chan []byte, 1))
	return ch.(chan []byte)
}

func (t *transport) sendBytes(dst substrate.Rank, tag int, data []byte) {
	t.mailbox(dst, tag, false) <- data
}

func (t *transport) recvBytes(src substrate.Rank, tag int) []byte {
	return <-t.mailbox(src, tag, true)
}

func (t *transport) Barrier() {
	round := t.barrierSeq.Add(1) - 1
	key := barrierKey{commID: t.id, round: round}
	v, _ := t.mesh.barriers.LoadOrStore(key, &barrierState{want: len(t.members), done: make(chan struct{})})
	bs := v.(*barrierState)

	bs.mu.Lock()
	bs.arrived++
	reached := bs.arrived == bs.want
	bs.mu.Unlock()

	if reached {
		close(bs.done)
	}
	<-bs.done
}

func (t *transport) Free() error { return nil }

// view is localmesh's implementation of substrate.View: a strided-subarray
// descriptor that only gains meaning once paired with a base pointer.
type view struct {
	mu       sync.Mutex
	released bool
	prim     dtype.Primitive
	shape    []int
	subShape []int
	origin   []int
}

func (v *view) Release() error {
	if v == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.released {
		panic("localmesh: double release of a view")
	}
	v.released = true
	return nil
}

func (v *view) count() int {
	if v == nil {
		return 0
	}
	n := 1
	for _, s := range v.subShape {
		n *= s
	}
	return n
}

func (v *view) byteLen() int {
	if v == nil {
		return 0
	}
	return v.count() * dtype.Sizeof(v.prim)
}

// extract copies the strided region v describes out of base into a fresh,
// contiguous byte slice.
func (v *view) extract(base unsafe.Pointer) []byte {
	if v == nil {
		return nil
	}
	elemSize := dtype.Sizeof(v.prim)
	out := make([]byte, v.byteLen())
	v.walk(func(srcOffsetElems, runLen, outOffsetElems int) {
		src := unsafe.Slice((*byte)(unsafe.Add(base, srcOffsetElems*elemSize)), runLen*elemSize)
		copy(out[outOffsetElems*elemSize:(outOffsetElems+runLen)*elemSize], src)
	})
	return out
}

// inject writes data, produced by a matching extract on the sending side,
// back into the strided region v describes within base. If data is shorter
// than v's full extent (the documented tight-halo/periodic-axis asymmetry,
// see the descriptor's halo design note) only the bytes actually present
// are written.
func (v *view) inject(base unsafe.Pointer, data []byte) {
	if v == nil || len(data) == 0 {
		return
	}
	elemSize := dtype.Sizeof(v.prim)
	v.walk(func(dstOffsetElems, runLen, inOffsetElems int) {
		lo := inOffsetElems * elemSize
		hi := (inOffsetElems + runLen) * elemSize
		if lo >= len(data) {
			return
		}
		if hi > len(data) {
			hi = len(data)
		}
		n := hi - lo
		dst := unsafe.Slice((*byte)(unsafe.Add(base, dstOffsetElems*elemSize)), n)
		copy(dst, data[lo:hi])
	})
}

// walk visits every contiguous run along the view's last axis, invoking fn
// with the run's starting element offset within the containing shape, its
// length, and its starting element offset within the flattened [sub-shape]
// output/input buffer.
func (v *view) walk(fn func(containingOffsetElems, runLen, flatOffsetElems int)) {
	d := len(v.shape)
	if d == 0 {
		return
	}
	strides := make([]int, d)
	strides[d-1] = 1
	for i := d - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * v.shape[i+1]
	}
	runLen := v.subShape[d-1]
	idx := make([]int, d-1)
	flatOffset := 0

	var rec func(axis int)
	rec = func(axis int) {
		if axis == d-1 {
			offset := v.origin[d-1] * strides[d-1]
			for a := 0; a < d-1; a++ {
				offset += (v.origin[a] + idx[a]) * strides[a]
			}
			fn(offset, runLen, flatOffset)
			flatOffset += runLen
			return
		}
		for i := 0; i < v.subShape[axis]; i++ {
			idx[axis] = i
			rec(axis + 1)
		}
	}
	rec(0)
}

func asView(v substrate.View) *view {
	if v == nil {
		return nil
	}
	return v.(*view)
}

func (t *transport) NewView(prim dtype.Primitive, shape, subShape, origin []int) (substrate.View, error) {
	n := 1
	for _, s := range subShape {
		n *= s
	}
	if n == 0 {
		return nil, nil
	}
	return &view{prim: prim, shape: shape, subShape: subShape, origin: origin}, nil
}

func (t *transport) Send(buf unsafe.Pointer, v substrate.View, dest substrate.Rank, tag int) error {
	t.sendBytes(dest, tag, asView(v).extract(buf))
	return nil
}

type request struct {
	done chan error
}

func (r *request) Wait() error { return <-r.done }

func (t *transport) ISend(buf unsafe.Pointer, v substrate.View, dest substrate.Rank, tag int) (substrate.Request, error) {
	data := asView(v).extract(buf)
	r := &request{done: make(chan error, 1)}
	go func() {
		t.sendBytes(dest, tag, data)
		r.done <- nil
	}()
	return r, nil
}

func (t *transport) Recv(buf unsafe.Pointer, v substrate.View, source substrate.Rank, tag int) error {
	asView(v).inject(buf, t.recvBytes(source, tag))
	return nil
}

// SendRecv performs a paired send and receive. A NullPeer dest or source
// is a legal no-op on that side, exactly as real MPI treats
// MPI_PROC_NULL: no message is exchanged and no counterpart is expected
// to participate on that side.
func (t *transport) SendRecv(sendBuf unsafe.Pointer, sendView substrate.View, dest substrate.Rank, sendTag int,
	recvBuf unsafe.Pointer, recvView substrate.View, source substrate.Rank, recvTag int) error {
	var wg sync.WaitGroup
	if dest != substrate.NullPeer {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.sendBytes(dest, sendTag, asView(sendView).extract(sendBuf))
		}()
	}
	if source != substrate.NullPeer {
		asView(recvView).inject(recvBuf, t.recvBytes(source, recvTag))
	}
	wg.Wait()
	return nil
}

func (t *transport) Bcast(buf unsafe.Pointer, count int, prim dtype.Primitive, root substrate.Rank) error {
	size := count * dtype.Sizeof(prim)
	tag := -1 // reserved, never collides with a caller-chosen tag
	if t.local == root {
		for _, member := range t.members {
			if member == root {
				continue
			}
			data := unsafe.Slice((*byte)(buf), size)
			cp := make([]byte, size)
			copy(cp, data)
			t.sendBytes(localRankOf(t.members, member), tag, cp)
		}
		return nil
	}
	data := t.recvBytes(localRankOf(t.members, root), tag)
	dst := unsafe.Slice((*byte)(buf), size)
	copy(dst, data)
	return nil
}

func localRankOf(members []substrate.Rank, global substrate.Rank) substrate.Rank {
	for i, m := range members {
		if m == global {
			return substrate.Rank(i)
		}
	}
	return substrate.NullPeer
}

// comm is localmesh's substrate.Comm.
type comm struct {
	tr *transport
}

func (c *comm) Rank() substrate.Rank { return c.tr.Rank() }
func (c *comm) Size() int            { return c.tr.Size() }
func (c *comm) Free() error          { return c.tr.Free() }

type splitEntry struct {
	localRank substrate.Rank
	global    substrate.Rank
	color     int
	key       int
}

type splitRound struct {
	mu      sync.Mutex
	entries []splitEntry
	want    int
	ready   chan struct{}
	groups  map[int][]substrate.Rank // color -> ordered global ranks, computed once
	newID   uint64                   // new communicator id, assigned once by the last arrival
}

type splitKey struct {
	commID uint64
	round  uint64
}

func (c *comm) Split(color, key int) (substrate.Comm, error) {
	round := c.tr.splitSeq.Add(1) - 1
	sk := splitKey{commID: c.tr.id, round: round}
	v, _ := c.tr.mesh.splits.LoadOrStore(sk, &splitRound{want: len(c.tr.members), ready: make(chan struct{})})
	sr := v.(*splitRound)

	sr.mu.Lock()
	sr.entries = append(sr.entries, splitEntry{localRank: c.tr.local, global: c.tr.members[c.tr.local], color: color, key: key})
	last := len(sr.entries) == sr.want
	if last {
		sr.groups = computeGroups(sr.entries)
		// The new communicator's id is assigned once, here, by whichever
		// peer happens to be last to arrive, and published to every peer
		// through the closed ready channel below. Each peer computing its
		// own id independently (as Mesh.Comm must not do either) would hand
		// out a different id per peer even though they all belong to the
		// same derived communicator, breaking every mailbox/barrier key
		// that embeds commID.
		sr.newID = c.tr.mesh.nextID.Add(1)
	}
	sr.mu.Unlock()

	if last {
		close(sr.ready)
	}
	<-sr.ready

	newMembers := sr.groups[color]
	return &comm{
		tr: &transport{
			mesh:    c.tr.mesh,
			id:      sr.newID,
			members: newMembers,
			local:   localRankOf(newMembers, c.tr.members[c.tr.local]),
		},
	}, nil
}

func computeGroups(entries []splitEntry) map[int][]substrate.Rank {
	byColor := map[int][]splitEntry{}
	for _, e := range entries {
		byColor[e.color] = append(byColor[e.color], e)
	}
	groups := make(map[int][]substrate.Rank, len(byColor))
	for color, es := range byColor {
		sort.SliceStable(es, func(i, j int) bool { return es[i].key < es[j].key })
		ranks := make([]substrate.Rank, len(es))
		for i, e := range es {
			ranks[i] = e.global
		}
		groups[color] = ranks
	}
	return groups
}

func (c *comm) CartCreate(dims []int, periods []bool, reorder bool) (substrate.CartComm, error) {
	// reorder is accepted for interface compatibility; this reference
	// transport has no locality to optimize for, so it always keeps the
	// identity mapping from split-group order to Cartesian rank.
	return &cartComm{
		tr:      c.tr,
		dims:    append([]int(nil), dims...),
		periods: append([]bool(nil), periods...),
	}, nil
}

// cartComm is localmesh's substrate.CartComm.
type cartComm struct {
	tr      *transport
	dims    []int
	periods []bool
}

func (c *cartComm) Rank() substrate.Rank { return c.tr.Rank() }
func (c *cartComm) Size() int            { return c.tr.Size() }
func (c *cartComm) Free() error          { return c.tr.Free() }
func (c *cartComm) Barrier()             { c.tr.Barrier() }

func (c *cartComm) Bcast(buf unsafe.Pointer, count int, prim dtype.Primitive, root substrate.Rank) error {
	return c.tr.Bcast(buf, count, prim, root)
}

func (c *cartComm) NewView(prim dtype.Primitive, shape, subShape, origin []int) (substrate.View, error) {
	return c.tr.NewView(prim, shape, subShape, origin)
}

func (c *cartComm) Send(buf unsafe.Pointer, v substrate.View, dest substrate.Rank, tag int) error {
	return c.tr.Send(buf, v, dest, tag)
}

func (c *cartComm) ISend(buf unsafe.Pointer, v substrate.View, dest substrate.Rank, tag int) (substrate.Request, error) {
	return c.tr.ISend(buf, v, dest, tag)
}

func (c *cartComm) Recv(buf unsafe.Pointer, v substrate.View, source substrate.Rank, tag int) error {
	return c.tr.Recv(buf, v, source, tag)
}

func (c *cartComm) SendRecv(sendBuf unsafe.Pointer, sendView substrate.View, dest substrate.Rank, sendTag int,
	recvBuf unsafe.Pointer, recvView substrate.View, source substrate.Rank, recvTag int) error {
	return c.tr.SendRecv(sendBuf, sendView, dest, sendTag, recvBuf, recvView, source, recvTag)
}

func (c *cartComm) Coords(rank substrate.Rank) ([]int, error) {
	if rank < 0 || int(rank) >= len(c.tr.members) {
		return nil, rankOutOfRange(rank, len(c.tr.members))
	}
	r := int(rank)
	coords := make([]int, len(c.dims))
	for axis := len(c.dims) - 1; axis >= 0; axis-- {
		coords[axis] = r % c.dims[axis]
		r /= c.dims[axis]
	}
	return coords, nil
}

func (c *cartComm) RankOfCoords(coords []int) (substrate.Rank, error) {
	r := 0
	for axis := 0; axis < len(c.dims); axis++ {
		cc := coords[axis] % c.dims[axis]
		if cc < 0 {
			cc += c.dims[axis]
		}
		r = r*c.dims[axis] + cc
	}
	return substrate.Rank(r), nil
}

type rangeError struct {
	rank, size int
}

func (e *rangeError) Error() string {
	return "localmesh: rank out of range"
}

func rankOutOfRange(rank substrate.Rank, size int) error {
	return &rangeError{rank: int(rank), size: size}
}
