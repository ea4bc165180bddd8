package storagews

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/model"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestClientServer_Extract(t *testing.T) {
	cats := catalogs.Builtin()
	mem := storage.NewMemory(&cats.Items)
	access := model.Vec3i{X: 4, Y: 64, Z: -2}
	mem.AddAccessPoint(storage.AccessPoint{Pos: access, Kind: storage.KindTerminal})
	mem.Deposit(model.ItemStack{Item: "DIAMOND_PICKAXE", Count: 1})

	srv := httptest.NewServer(NewServer(mem, &cats.Items, nil).Handler())
	defer srv.Close()

	c := NewClient(wsURL(srv.URL), nil)
	defer c.Close()
	if !c.Available() {
		t.Fatalf("expected available client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := c.ExtractMatching(ctx, access, storage.Query{Tool: "PICKAXE"})
	if err != nil {
		t.Fatalf("ExtractMatching: %v", err)
	}
	if len(got) != 1 || got[0].Item != "DIAMOND_PICKAXE" {
		t.Fatalf("unexpected items %+v", got)
	}
	if mem.CountOf("DIAMOND_PICKAXE") != 0 {
		t.Fatalf("expected server stock to drop")
	}

	// Same connection, nothing left.
	got, err = c.ExtractMatching(ctx, access, storage.Query{Tool: "PICKAXE"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %+v %v", got, err)
	}

	_, err = c.ExtractMatching(ctx, model.Vec3i{}, storage.Query{Tool: "PICKAXE"})
	if !errors.Is(err, storage.ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
}

type slowService struct{ release chan struct{} }

func (s slowService) Available() bool { return true }

func (s slowService) ExtractMatching(ctx context.Context, _ model.Vec3i, _ storage.Query) ([]model.ItemStack, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func TestClient_DeadlineFromContext(t *testing.T) {
	slow := slowService{release: make(chan struct{})}
	s := NewServer(slow, nil, nil)
	s.ExtractTimeout = 10 * time.Second
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer close(slow.release)

	c := NewClient(wsURL(srv.URL), nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.ExtractMatching(ctx, model.Vec3i{}, storage.Query{Tool: "AXE"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("call was not bounded by the context deadline")
	}
}

func TestClient_UnconfiguredAndReconfigure(t *testing.T) {
	c := NewClient("  ", nil)
	if c.Available() {
		t.Fatalf("empty url must be unavailable")
	}
	if _, err := c.ExtractMatching(context.Background(), model.Vec3i{}, storage.Query{Tool: "HOE"}); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	c.Reconfigure("ws://127.0.0.1:1/v1/storage")
	if !c.Available() {
		t.Fatalf("expected available after Reconfigure")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := c.ExtractMatching(ctx, model.Vec3i{}, storage.Query{Tool: "HOE"}); err == nil {
		t.Fatalf("expected dial failure")
	}
}
