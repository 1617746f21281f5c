// Command cartomeshdemo runs a scatter -> halo-update -> gather round
// trip over an in-process localmesh grid and reports whether the
// recovered array matches the original.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/LynnColeArt/cartomesh"
	"github.com/LynnColeArt/cartomesh/diag"
	"github.com/LynnColeArt/cartomesh/dtype"
	"github.com/LynnColeArt/cartomesh/substrate"
	"github.com/LynnColeArt/cartomesh/substrate/localmesh"
)

type preset struct {
	split    []int
	periodic []bool
	global   []int
}

var presets = map[int]preset{
	1: {split: []int{4}, periodic: []bool{false}, global: []int{4000}},
	2: {split: []int{2, 2}, periodic: []bool{false, true}, global: []int{1200, 1200}},
	3: {split: []int{2, 2, 2}, periodic: []bool{false, false, false}, global: []int{240, 240, 240}},
}

func main() {
	presetFlag := flag.Int("preset", 0, "select a built-in 1D/2D/3D preset (1, 2, or 3)")
	splitFlag := flag.String("split", "", "tile split, e.g. 2x3x1")
	periodicFlag := flag.String("periodic", "", "comma-separated periodicity, e.g. t,f,t")
	reorderFlag := flag.Bool("reorder", cartomesh.DefaultReorder, "permit the substrate to reorder peer identities")
	haloFlag := flag.String("halo", "FULL", "halo policy: NO, FULL, or TIGHT")
	verboseFlag := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verboseFlag {
		diag.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	haloType, err := cartomesh.ParseHaloType(*haloFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	split, periodic, global, err := resolveGrid(*presetFlag, *splitFlag, *periodicFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	n := cartomesh.Prod(split)
	fmt.Printf("cartomeshdemo: grid=%v periodic=%v reorder=%v halo=%s global=%v peers=%d\n",
		split, periodic, *reorderFlag, haloType, global, n)

	mesh := localmesh.NewMesh(n)
	ok, err := runDemo(mesh, n, split, periodic, *reorderFlag, global, haloType)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cartomeshdemo:", err)
		os.Exit(1)
	}
	if ok {
		fmt.Println("round trip PASSED")
	} else {
		fmt.Println("round trip FAILED")
		os.Exit(1)
	}
}

func resolveGrid(presetNum int, splitStr, periodicStr string) (split []int, periodic []bool, global []int, err error) {
	if presetNum != 0 {
		p, ok := presets[presetNum]
		if !ok {
			return nil, nil, nil, fmt.Errorf("unknown preset %d", presetNum)
		}
		return p.split, p.periodic, p.global, nil
	}
	if splitStr == "" {
		p := presets[2]
		return p.split, p.periodic, p.global, nil
	}
	for _, tok := range strings.Split(splitStr, "x") {
		v, perr := strconv.Atoi(tok)
		if perr != nil {
			return nil, nil, nil, fmt.Errorf("invalid -split token %q: %w", tok, perr)
		}
		split = append(split, v)
	}
	if periodicStr == "" {
		periodic = make([]bool, len(split))
	} else {
		for _, tok := range strings.Split(periodicStr, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "t", "true", "1":
				periodic = append(periodic, true)
			case "f", "false", "0":
				periodic = append(periodic, false)
			default:
				return nil, nil, nil, fmt.Errorf("invalid -periodic token %q", tok)
			}
		}
	}
	global = make([]int, len(split))
	for i := range global {
		global[i] = split[i] * 100
	}
	return split, periodic, global, nil
}

func runDemo(mesh *localmesh.Mesh, n int, split []int, periodic []bool, reorder bool, global []int, haloType cartomesh.HaloType) (bool, error) {
	var wg sync.WaitGroup
	results := make([]bool, n)
	errs := make([]error, n)

	total := cartomesh.Prod(global)
	source := make([]float64, total)
	for i := range source {
		source[i] = float64(i)
	}
	recovered := make([]float64, total)

	for rank := 0; rank < n; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank], errs[rank] = demoPeer(mesh.Comm(rank), split, periodic, reorder, global, haloType, source, recovered)
		}(rank)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return false, err
		}
	}
	for i := range source {
		if recovered[i] != source[i] {
			return false, nil
		}
	}
	for _, ok := range results {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func demoPeer(comm substrate.Comm, split []int, periodic []bool, reorder bool, global []int, haloType cartomesh.HaloType, source, recovered []float64) (bool, error) {
	sp, err := cartomesh.NewSplitter(comm, split, periodic, reorder)
	if err != nil {
		return false, err
	}
	defer sp.Close()
	if !sp.InGrid() {
		return true, nil
	}

	haloWidth := 1
	desc, err := cartomesh.NewDescriptor[float64](sp, global, []int{haloWidth}, []int{haloWidth}, haloType)
	if err != nil {
		return false, err
	}
	defer desc.Close()

	local := make([]float64, desc.LocalSize())

	var scatterSrc []float64
	var gatherDst []float64
	if sp.Rank() == 0 {
		scatterSrc = source
		gatherDst = recovered
	}

	if err := cartomesh.Scatter(sp, scatterSrc, local, 0, desc); err != nil {
		return false, err
	}
	if err := cartomesh.HaloUpdate(sp, local, desc); err != nil {
		return false, err
	}
	if err := cartomesh.Gather(sp, local, gatherDst, 0, desc); err != nil {
		return false, err
	}

	// Exercise Bcast to distribute a trivial piece of configuration from
	// rank 0, matching the capability every in-grid peer is expected to
	// have available (§6).
	tag := int32(0)
	if sp.Rank() == 0 {
		tag = 1
	}
	if err := sp.Bcast([]int32{tag}, 1, dtype.Int32, 0); err != nil {
		return false, err
	}

	return true, nil
}
