// mavity-sim runs a layout session headlessly: seed a ring graph over random
// positions, tick for a while, log statistics, and optionally dump density
// plates. Meant for profiling and eyeballing parameter sets, not for
// production ingestion.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/oyin-bo/mavity"
	"github.com/oyin-bo/mavity/cpu"
	"github.com/oyin-bo/mavity/diag"
	"github.com/oyin-bo/mavity/gpu"
)

func main() {
	var (
		n          = flag.Int("n", 4096, "particle count")
		degree     = flag.Int("degree", 2, "edges per particle (mirrored)")
		ticks      = flag.Int("ticks", 1000, "ticks to run")
		seed       = flag.Int64("seed", 1, "dataset seed")
		configPath = flag.String("config", "", "optional params YAML")
		backend    = flag.String("backend", "cpu", "cpu or gpu")
		verify     = flag.Bool("verify", false, "run the invariant checker every tick")
		plateDir   = flag.String("plates", "", "directory for density plate dumps")
		plateEvery = flag.Int("plate-every", 100, "ticks between plate dumps")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()
	if *plateEvery < 1 {
		*plateEvery = 1
	}

	log := mavity.NewDefaultLogger("mavity-sim", *debug)

	params, err := mavity.LoadParams(*configPath)
	if err != nil {
		log.Errorf("params: %v", err)
		os.Exit(1)
	}

	ds := ringDataset(rand.New(rand.NewSource(*seed)), *n, *degree)

	var be mavity.Backend
	switch *backend {
	case "cpu":
		be, err = cpu.New(ds, params)
	case "gpu":
		be, err = gpu.New(ds, params)
	default:
		err = fmt.Errorf("unknown backend %q", *backend)
	}
	if err != nil {
		log.Errorf("backend: %v", err)
		os.Exit(1)
	}

	opts := []mavity.Option{mavity.WithLogger(log)}
	if *verify {
		opts = append(opts, mavity.WithTickHook(diag.Check))
	}
	eng, err := mavity.NewEngine(be, opts...)
	if err != nil {
		log.Errorf("engine: %v", err)
		os.Exit(1)
	}
	defer eng.Close()

	for tick := 1; tick <= *ticks; tick++ {
		if err := eng.Tick(); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		dump := *plateDir != "" && tick%*plateEvery == 0
		logStats := tick%*plateEvery == 0 || tick == *ticks
		if !dump && !logStats {
			continue
		}

		snap, err := eng.Snapshot()
		if err != nil {
			log.Errorf("snapshot: %v", err)
			os.Exit(1)
		}
		if logStats {
			log.Infof("tick %d: %s", tick, diag.Summarize(snap))
		}
		if dump {
			if err := writePlate(*plateDir, eng.RunID().String(), tick, snap); err != nil {
				log.Warnf("plate: %v", err)
			}
		}
	}
}

// ringDataset seeds a jittered ring graph: every particle links to its next
// few neighbours, mirrored. Rings stress the relocation path because edges
// reach across the whole slot range after a few sorts.
func ringDataset(rng *rand.Rand, n, degree int) *mavity.Dataset {
	ds := &mavity.Dataset{
		Pos:  make([]mgl32.Vec3, n),
		Vel:  make([]mgl32.Vec3, n),
		Mass: make([]float32, n),
	}
	for i := 0; i < n; i++ {
		ds.Pos[i] = mgl32.Vec3{
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
		}
		ds.Mass[i] = 1
	}

	adj := make([][]int64, n)
	for i := 0; i < n; i++ {
		for d := 1; d <= degree; d++ {
			j := (i + d) % n
			adj[i] = append(adj[i], int64(j))
			adj[j] = append(adj[j], int64(i))
		}
	}
	ds.Ptr = make([]int64, n+1)
	for i := 0; i < n; i++ {
		ds.Ptr[i+1] = ds.Ptr[i] + int64(len(adj[i]))
		ds.Store = append(ds.Store, adj[i]...)
	}
	return ds
}

func writePlate(dir, runID string, tick int, snap *mavity.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("%s-%06d.png", runID[:8], tick))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return diag.WritePlate(f, snap, 512)
}
