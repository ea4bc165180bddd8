package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"voxelgather.ai/internal/persistence/indexdb"
	persistlog "voxelgather.ai/internal/persistence/log"
	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/metrics"
	"voxelgather.ai/internal/sim/gather/policy"
	"voxelgather.ai/internal/sim/gather/provision"
	"voxelgather.ai/internal/sim/gather/resolve"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/gather/task"
	"voxelgather.ai/internal/sim/model"
	"voxelgather.ai/internal/sim/runner"
	"voxelgather.ai/internal/sim/tuning"
	"voxelgather.ai/internal/sim/voxelworld"
	"voxelgather.ai/internal/transport/storagews"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "world seed")
		configDir  = flag.String("configs", "./configs", "config directory (blocks.json, items.json)")
		tuningPath = flag.String("tuning", "", "path to gather.yaml (default: <configs>/gather.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		agents     = flag.Int("agents", 1, "number of agents to spawn")
		slots      = flag.Int("slots", 27, "inventory slots per agent")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite outcome index")
		storageURL = flag.String("storage_url", "", "storaged websocket url (overrides gather.yaml storage.url)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[gatherd] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "gather.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune, _ = tuning.Load("")
	}
	if u := strings.TrimSpace(*storageURL); u != "" {
		tune.Storage.URL = u
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pol := policy.New(tune.Policy, cats)
	store, locator, closeStore := openStorage(tune.Storage, logger)
	defer closeStore()

	deps := task.Deps{
		Policy:      pol,
		Resolver:    resolve.New(pol, 256),
		Provisioner: provision.New(pol, store, tune.Storage.Timeout(), log.New(os.Stdout, "[provision] ", log.LstdFlags|log.Lmicroseconds)),
		Tuning:      tune.Gather,
		Metrics:     metrics.MustNewMetrics(reg),
		Log:         log.New(os.Stdout, "[task] ", log.LstdFlags|log.Lmicroseconds),
	}

	_ = os.MkdirAll(*dataDir, 0o755)
	taskLog := persistlog.NewTaskLogger(*dataDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer taskLog.Close()
	defer auditLog.Close()

	opts := runner.Options{
		TickRateHz:   tune.TickRateHz,
		Locator:      locator,
		AccessRadius: tune.Storage.AccessRadius,
		Journal:      taskLog,
		Audit:        auditLog,
		Log:          logger,
	}
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "gather.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		registerIndexStats(reg, idx)
		opts.Index = idx
	}

	world := voxelworld.NewStore(&cats.Blocks, voxelworld.Gen{
		Seed:                        *seed,
		Height:                      tune.World.Height,
		BoundaryR:                   tune.World.BoundaryR,
		BiomeRegionSize:             tune.World.BiomeRegionSize,
		SpawnClearRadius:            tune.World.SpawnClearRadius,
		OreClusterProbScalePermille: tune.World.OreClusterProbScalePermille,
		TreeProbScalePermille:       tune.World.TreeProbScalePermille,
		CropProbScalePermille:       tune.World.CropProbScalePermille,
	})
	r := runner.New(world, deps, opts)
	ids := spawnAgents(r, *agents, *slots, tune.StarterItems)
	logger.Printf("world seed=%d height=%d agents=%v", *seed, world.Gen().Height, ids)

	ctx, cancel := signalContext()
	defer cancel()

	if *storageURL == "" {
		go watchReload(ctx, tp, store, logger)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newAPI(r, ids[0], reg, logger).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Printf("listening on %s", *addr)
	if err := serve(ctx, srv, r.Run, logger); err != nil {
		logger.Printf("ListenAndServe: %v", err)
	}
}

// serve runs loop and srv until ctx is done or srv fails, then stops both. It
// returns only after loop has returned, so deferred closes of the logs and the
// index never race a final tick.
func serve(ctx context.Context, srv *http.Server, loop func(context.Context) error, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop(ctx); err != nil && err != context.Canceled {
			logger.Printf("runner stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		err = nil
	}
	cancel()
	<-loopDone
	return err
}

// openStorage builds the storage network client. With no url configured the
// client reports itself unavailable until a reload sets one. Access points
// come from configuration either way.
func openStorage(cfg tuning.Storage, logger *log.Logger) (*storagews.Client, runner.Locator, func()) {
	pts := make(storage.Points, 0, len(cfg.AccessPoints))
	for _, ap := range cfg.AccessPoints {
		pts = append(pts, storage.AccessPoint{Pos: model.Vec3i{X: ap.Pos[0], Y: ap.Pos[1], Z: ap.Pos[2]}, Kind: ap.Kind})
	}
	c := storagews.NewClient(cfg.URL, log.New(os.Stdout, "[storagews] ", log.LstdFlags|log.Lmicroseconds))
	if cfg.URL == "" {
		logger.Printf("storage network: none")
	} else {
		logger.Printf("storage network: %s (%d access points)", cfg.URL, len(pts))
	}
	return c, pts, func() { _ = c.Close() }
}

type urlSetter interface {
	Reconfigure(url string)
}

// watchReload re-reads storage.url from the tuning file on SIGHUP.
func watchReload(ctx context.Context, path string, c urlSetter, logger *log.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			url, err := reloadStorageURL(path, c)
			if err != nil {
				logger.Printf("reload: %v", err)
				continue
			}
			logger.Printf("reload: storage network %q", url)
		}
	}
}

func reloadStorageURL(path string, c urlSetter) (string, error) {
	tune, err := tuning.Load(path)
	if err != nil {
		return "", err
	}
	c.Reconfigure(tune.Storage.URL)
	return tune.Storage.URL, nil
}

// spawnAgents stands agents in a row along +X from the origin, each with the
// starter items in its inventory.
func spawnAgents(r *runner.Runner, n, slots int, starter map[string]int) []string {
	if n <= 0 {
		n = 1
	}
	items := make([]string, 0, len(starter))
	for it := range starter {
		items = append(items, it)
	}
	sort.Strings(items)

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("A%d", i+1)
		x, z := i*2, 0
		feet := model.Vec3f{X: float64(x) + 0.5, Y: float64(r.World().StandY(x, z)), Z: float64(z) + 0.5}
		a := r.AddAgent(id, feet, slots)
		for _, it := range items {
			a.Items().Add(model.ItemStack{Item: it, Count: starter[it]})
		}
		ids = append(ids, id)
	}
	return ids
}

func registerIndexStats(reg prometheus.Registerer, idx *indexdb.SQLiteIndex) {
	gauge := func(name, help string, f func(indexdb.Stats) float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "voxelgather",
			Subsystem: "index",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(idx.Stats()) }))
	}
	gauge("queue_depth", "Pending index writes.", func(s indexdb.Stats) float64 { return float64(s.QueueDepth) })
	gauge("queue_capacity", "Index write queue capacity.", func(s indexdb.Stats) float64 { return float64(s.QueueCapacity) })
	gauge("dropped_outcomes", "Task outcomes dropped on a full queue.", func(s indexdb.Stats) float64 { return float64(s.DropOutcomeTotal) })
	gauge("dropped_events", "Task events dropped on a full queue.", func(s indexdb.Stats) float64 { return float64(s.DropEventTotal) })
	gauge("dropped_audits", "Item audits dropped on a full queue.", func(s indexdb.Stats) float64 { return float64(s.DropAuditTotal) })
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
