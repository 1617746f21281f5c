package cartomesh

import (
	"golang.org/x/sync/errgroup"

	"github.com/LynnColeArt/cartomesh/diag"
	"github.com/LynnColeArt/cartomesh/dtype"
	"github.com/LynnColeArt/cartomesh/substrate"
)

// Scatter distributes data, valid at root with extent descriptor's
// TotalSize, into every in-grid peer's localData, which must already be
// allocated with extent descriptor.LocalSize(). Only the interior of
// localData is defined on return; the halo region is untouched. Scatter
// must be called by every in-grid peer.
//
// Root issues one non-blocking ISend per peer (including itself) so the
// fan-out never blocks on send-buffer availability, performs its own
// local receive while those sends are in flight, then waits on every
// outstanding request before returning.
func Scatter[T dtype.Element](sp *Splitter, data, localData []T, root substrate.Rank, desc *Descriptor[T]) error {
	sp.mustInGrid("Scatter")

	if sp.rank == root {
		base := bufPointer(data)
		reqs := make([]substrate.Request, 0, sp.Size())
		for p := 0; p < sp.Size(); p++ {
			v := desc.types[p]
			req, err := sp.cart.ISend(base, v, substrate.Rank(p), TagScatter)
			if err != nil {
				return errTransport("Scatter", err)
			}
			reqs = append(reqs, req)
		}
		if err := recvLocal(sp, localData, desc, root, TagScatter); err != nil {
			return err
		}
		for _, req := range reqs {
			if err := req.Wait(); err != nil {
				return errTransport("Scatter", err)
			}
		}
		return nil
	}

	return recvLocal(sp, localData, desc, root, TagScatter)
}

func recvLocal[T dtype.Element](sp *Splitter, localData []T, desc *Descriptor[T], peer substrate.Rank, tag int) error {
	base := bufPointer(localData)
	if err := sp.cart.Recv(base, desc.localType, peer, tag); err != nil {
		return errTransport("recvLocal", err)
	}
	return nil
}

// Gather collects every in-grid peer's localData interior into newData at
// root, the exact inverse of Scatter. newData must be pre-allocated at
// root with extent descriptor.TotalSize(); its contents on non-root peers
// are unspecified on return. Gather must be called by every in-grid peer.
//
// The substrate exposes no non-blocking receive, so root fans its
// per-peer receives out concurrently as blocking Recv calls under an
// errgroup instead of the ISend-and-Wait pattern Scatter uses for its
// sends.
func Gather[T dtype.Element](sp *Splitter, localData, newData []T, root substrate.Rank, desc *Descriptor[T]) error {
	sp.mustInGrid("Gather")

	if sp.rank == root {
		g := new(errgroup.Group)
		base := bufPointer(newData)
		for p := 0; p < sp.Size(); p++ {
			p := p
			v := desc.types[p]
			g.Go(func() error {
				return sp.cart.Recv(base, v, substrate.Rank(p), TagGather)
			})
		}
		if err := sendLocal(sp, localData, desc, root); err != nil {
			return err
		}
		if err := g.Wait(); err != nil {
			return errTransport("Gather", err)
		}
		return nil
	}

	return sendLocal(sp, localData, desc, root)
}

func sendLocal[T dtype.Element](sp *Splitter, localData []T, desc *Descriptor[T], peer substrate.Rank) error {
	base := bufPointer(localData)
	if err := sp.cart.Send(base, desc.localType, peer, TagGather); err != nil {
		return errTransport("sendLocal", err)
	}
	return nil
}

// HaloUpdate exchanges boundary strips with every first-neighbor of this
// peer, in the splitter's fixed direction order, using one combined
// send-and-receive per direction to avoid deadlock. A direction with no
// live neighbor or a null view still issues the call, transferring 0
// elements on that side; the combined primitive itself is never skipped,
// since a real neighbor on the other end may be matching it. After
// HaloUpdate returns, every face of localData reflects the appropriate
// neighbor's adjacent interior. HaloUpdate must be called by every
// in-grid peer and performs no internal concurrency: exchanges are
// sequential and blocking, matching the substrate's FIFO-per-(sender,
// receiver, tag) guarantee.
func HaloUpdate[T dtype.Element](sp *Splitter, localData []T, desc *Descriptor[T]) error {
	sp.mustInGrid("HaloUpdate")
	base := bufPointer(localData)
	bytesSent := 0

	// Every in-grid peer calls the combined primitive once per direction,
	// unconditionally: a NullPeer destination or source is a legal no-op
	// handled by the substrate, and a null view on an otherwise-real
	// neighbor means "send/receive 0 elements," not "skip the call" — the
	// neighbor on the other end may still be waiting to match it.
	for i, dir := range sp.directions {
		dest := sp.destNeighbours[i]
		src := sp.srcNeighbours[i]
		sendView := desc.sendTypes[i]
		recvView := desc.recvTypes[i]

		err := sp.cart.SendRecv(base, sendView, dest, TagHalo, base, recvView, src, TagHalo)
		if err != nil {
			return errTransport("HaloUpdate", err)
		}
		if dest != substrate.NullPeer && sendView != nil {
			bytesSent += haloStripVolume(dir, desc) * dtype.Sizeof(dtype.PrimitiveOf[T]())
		}
	}
	diag.HaloExchanged(len(sp.directions), bytesSent)
	return nil
}

func haloStripVolume[T dtype.Element](dir []int, desc *Descriptor[T]) int {
	// view handles don't expose their own element count, so this is an
	// approximation — the interior face area — used only for the
	// diagnostic byte counter, not for correctness.
	area := 1
	for axis, c := range dir {
		if c == 0 {
			area *= desc.localSubSizes[axis]
		}
	}
	return area
}
