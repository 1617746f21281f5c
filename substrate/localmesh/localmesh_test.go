package localmesh

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/LynnColeArt/cartomesh/dtype"
	"github.com/LynnColeArt/cartomesh/substrate"
)

func TestRankAndSize(t *testing.T) {
	m := NewMesh(4)
	for i := 0; i < 4; i++ {
		c := m.Comm(i)
		if c.Rank() != substrate.Rank(i) {
			t.Errorf("rank %d: got %v", i, c.Rank())
		}
		if c.Size() != 4 {
			t.Errorf("rank %d: size = %d, want 4", i, c.Size())
		}
	}
}

func TestBarrierReleasesAllPeers(t *testing.T) {
	const n = 6
	m := NewMesh(n)
	var wg sync.WaitGroup
	var reached [n]bool
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := m.Comm(rank)
			c.(interface{ Free() error }).Free()
			cc, err := c.CartCreate([]int{n}, []bool{false}, true)
			if err != nil {
				t.Errorf("rank %d CartCreate: %v", rank, err)
				return
			}
			cc.Barrier()
			mu.Lock()
			reached[rank] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	for i, ok := range reached {
		if !ok {
			t.Errorf("rank %d never returned from Barrier", i)
		}
	}
}

func TestCartCreateCoordsRoundTrip(t *testing.T) {
	m := NewMesh(6)
	c := m.Comm(0)
	cc, err := c.CartCreate([]int{2, 3}, []bool{false, true}, true)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 6; r++ {
		coords, err := cc.Coords(substrate.Rank(r))
		if err != nil {
			t.Fatalf("Coords(%d): %v", r, err)
		}
		back, err := cc.RankOfCoords(coords)
		if err != nil {
			t.Fatalf("RankOfCoords(%v): %v", coords, err)
		}
		if back != substrate.Rank(r) {
			t.Errorf("rank %d -> coords %v -> rank %d, want round trip", r, coords, back)
		}
	}
}

func TestRankOfCoordsWrapsPeriodicAxis(t *testing.T) {
	m := NewMesh(6)
	c := m.Comm(0)
	cc, err := c.CartCreate([]int{2, 3}, []bool{false, true}, true)
	if err != nil {
		t.Fatal(err)
	}
	base, err := cc.RankOfCoords([]int{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := cc.RankOfCoords([]int{1, 3}) // axis 1 has extent 3, periodic
	if err != nil {
		t.Fatal(err)
	}
	if base != wrapped {
		t.Errorf("RankOfCoords({1,3}) = %v, want wrap to equal RankOfCoords({1,0}) = %v", wrapped, base)
	}
}

func TestSplitSeparatesGroupsByColor(t *testing.T) {
	const n = 4
	m := NewMesh(n)
	results := make([]substrate.Comm, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := m.Comm(rank)
			color := rank % 2
			sub, err := c.Split(color, rank)
			if err != nil {
				t.Errorf("rank %d Split: %v", rank, err)
				return
			}
			results[rank] = sub
		}(i)
	}
	wg.Wait()
	if results[0].Size() != 2 || results[1].Size() != 2 {
		t.Fatalf("want two groups of size 2, got sizes %d and %d", results[0].Size(), results[1].Size())
	}
	if results[0].Rank() == results[2].Rank() {
		// ranks 0 and 2 share color 0; their local ranks within the new
		// group are 0 and 1 by key order, so they must differ.
		t.Errorf("peers 0 and 2 share a local rank in their split group")
	}
}

func TestSendRecvRoundTrip(t *testing.T) {
	m := NewMesh(2)
	c0 := m.Comm(0)
	c1 := m.Comm(1)
	cc0, _ := c0.CartCreate([]int{2}, []bool{false}, true)
	cc1, _ := c1.CartCreate([]int{2}, []bool{false}, true)

	data := []float64{1, 2, 3, 4, 5, 6}
	shape := []int{6}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v, _ := cc0.NewView(dtype.Float64, shape, []int{6}, []int{0})
		defer v.Release()
		if err := cc0.Send(unsafe.Pointer(&data[0]), v, 1, 42); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	recv := make([]float64, 6)
	go func() {
		defer wg.Done()
		v, _ := cc1.NewView(dtype.Float64, shape, []int{6}, []int{0})
		defer v.Release()
		if err := cc1.Recv(unsafe.Pointer(&recv[0]), v, 0, 42); err != nil {
			t.Errorf("Recv: %v", err)
		}
	}()
	wg.Wait()

	for i := range data {
		if recv[i] != data[i] {
			t.Errorf("recv[%d] = %v, want %v", i, recv[i], data[i])
		}
	}
}

func TestISendCompletesAsynchronously(t *testing.T) {
	m := NewMesh(2)
	c0 := m.Comm(0)
	c1 := m.Comm(1)
	cc0, _ := c0.CartCreate([]int{2}, []bool{false}, true)
	cc1, _ := c1.CartCreate([]int{2}, []bool{false}, true)

	data := []float64{10, 20, 30}
	shape := []int{3}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v, _ := cc0.NewView(dtype.Float64, shape, []int{3}, []int{0})
		defer v.Release()
		req, err := cc0.ISend(unsafe.Pointer(&data[0]), v, 1, 7)
		if err != nil {
			t.Errorf("ISend: %v", err)
			return
		}
		// ISend returns a handle without waiting for the matching Recv;
		// Wait blocks until the send has been handed to the receiver.
		if err := req.Wait(); err != nil {
			t.Errorf("Wait: %v", err)
		}
	}()

	recv := make([]float64, 3)
	go func() {
		defer wg.Done()
		v, _ := cc1.NewView(dtype.Float64, shape, []int{3}, []int{0})
		defer v.Release()
		if err := cc1.Recv(unsafe.Pointer(&recv[0]), v, 0, 7); err != nil {
			t.Errorf("Recv: %v", err)
		}
	}()
	wg.Wait()

	for i := range data {
		if recv[i] != data[i] {
			t.Errorf("recv[%d] = %v, want %v", i, recv[i], data[i])
		}
	}
}

func TestViewExtractInjectStridedSubarray(t *testing.T) {
	// 3x4 row-major buffer; extract the 3x2 sub-block starting at column 1.
	buf := []float64{
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
	}
	v := &view{prim: dtype.Float64, shape: []int{3, 4}, subShape: []int{3, 2}, origin: []int{0, 1}}
	got := v.extract(unsafe.Pointer(&buf[0]))
	want := []float64{1, 2, 5, 6, 9, 10}

	gotF := unsafe.Slice((*float64)(unsafe.Pointer(&got[0])), len(want))
	for i := range want {
		if gotF[i] != want[i] {
			t.Fatalf("extract()[%d] = %v, want %v", i, gotF[i], want[i])
		}
	}

	dst := make([]float64, 12)
	v2 := &view{prim: dtype.Float64, shape: []int{3, 4}, subShape: []int{3, 2}, origin: []int{0, 1}}
	v2.inject(unsafe.Pointer(&dst[0]), got)
	for i := 0; i < 3; i++ {
		if dst[i*4+1] != buf[i*4+1] || dst[i*4+2] != buf[i*4+2] {
			t.Errorf("row %d: inject did not restore sub-block", i)
		}
	}
}

func TestViewReleaseTwicePanics(t *testing.T) {
	v := &view{prim: dtype.Float64, shape: []int{4}, subShape: []int{4}, origin: []int{0}}
	if err := v.Release(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected second Release to panic")
		}
	}()
	v.Release()
}

func TestBcastFromRoot(t *testing.T) {
	const n = 4
	m := NewMesh(n)
	var wg sync.WaitGroup
	results := make([][]int32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := m.Comm(rank)
			cc, _ := c.CartCreate([]int{n}, []bool{false}, true)
			buf := make([]int32, 3)
			if rank == 0 {
				buf[0], buf[1], buf[2] = 7, 8, 9
			}
			if err := cc.Bcast(unsafe.Pointer(&buf[0]), 3, dtype.Int32, 0); err != nil {
				t.Errorf("rank %d Bcast: %v", rank, err)
				return
			}
			results[rank] = buf
		}(i)
	}
	wg.Wait()
	for r, buf := range results {
		if buf[0] != 7 || buf[1] != 8 || buf[2] != 9 {
			t.Errorf("rank %d after Bcast = %v, want [7 8 9]", r, buf)
		}
	}
}
