package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/transport/storagews"
)

func main() {
	var (
		addr      = flag.String("addr", ":9090", "http listen address")
		configDir = flag.String("configs", "./configs", "config directory (items.json)")
		stockPath = flag.String("stock", "./configs/storage.yaml", "access points and initial stock")
		timeoutMs = flag.Int("extract_timeout_ms", 2000, "per-request extraction deadline")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[storaged] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	mem := storage.NewMemory(&cats.Items)
	st, err := loadStock(*stockPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load stock: %v", err)
		}
		logger.Printf("stock file not found (%s); starting empty", *stockPath)
	}
	if err := st.apply(mem, &cats.Items); err != nil {
		logger.Fatalf("stock: %v", err)
	}
	logger.Printf("access_points=%d items=%d", len(st.AccessPoints), len(st.Stock))

	srv := storagews.NewServer(mem, &cats.Items, logger)
	srv.ExtractTimeout = time.Duration(*timeoutMs) * time.Millisecond

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/storage", srv.Handler())

	hs := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = hs.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}
