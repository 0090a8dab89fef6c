package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sift/internal/apikey"
	vc "github.com/linnemanlabs/sift/internal/cfg"
	"github.com/linnemanlabs/sift/internal/feedbackapi"
	"github.com/linnemanlabs/sift/internal/postgres"
	"github.com/linnemanlabs/sift/internal/triage"
	"github.com/linnemanlabs/sift/internal/triage/memstore"
)

func newTestService(t *testing.T, appCfg *vc.Config) (*triage.Service, *apikey.Service) {
	t.Helper()
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, appCfg, log.Nop())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(closeStore)

	keys := apikey.NewService(st, nil)
	svc, err := newTriageService(ctx, appCfg, st, keys, triage.ServiceHooks{}, log.Nop())
	if err != nil {
		t.Fatalf("newTriageService: %v", err)
	}
	return svc, keys
}

func TestOpenStore_InMemoryWithoutDatabaseURL(t *testing.T) {
	t.Parallel()

	st, closeStore, err := openStore(context.Background(), &vc.Config{}, log.Nop())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closeStore()

	if _, ok := st.(*memstore.Store); !ok {
		t.Errorf("store = %T, want *memstore.Store", st)
	}
}

func TestOpenStore_BadDatabaseURL(t *testing.T) {
	t.Parallel()

	_, _, err := openStore(context.Background(), &vc.Config{DatabaseURL: "postgres://%zz"}, log.Nop())
	if err == nil {
		t.Fatal("expected error for unparsable database url")
	}
}

func TestSeedSamples_OnlyWhenEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newTestService(t, &vc.Config{NotifyThreshold: 80})

	if err := seedSamples(ctx, svc, log.Nop()); err != nil {
		t.Fatalf("seedSamples: %v", err)
	}
	items, _ := svc.List(ctx)
	if len(items) != 20 {
		t.Fatalf("items after first seed = %d, want 20", len(items))
	}

	if err := seedSamples(ctx, svc, log.Nop()); err != nil {
		t.Fatalf("seedSamples again: %v", err)
	}
	items, _ = svc.List(ctx)
	if len(items) != 20 {
		t.Errorf("items after second seed = %d, want 20 (no duplicate load)", len(items))
	}
}

func TestNewTriageService_SamplesFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "samples.yaml")
	data := []byte("samples:\n  - content: \"App crashes on launch\"\n  - title: \"Dark mode\"\n    content: \"please add dark mode\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write samples: %v", err)
	}

	svc, _ := newTestService(t, &vc.Config{SamplesFile: path, NotifyThreshold: 80})
	n, err := svc.LoadSamples(ctx)
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded = %d, want 2", n)
	}
}

func TestNewTriageService_MissingSamplesFile(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	_, err := newTriageService(context.Background(), &vc.Config{SamplesFile: "/nonexistent/samples.yaml"},
		st, apikey.NewService(st, nil), triage.ServiceHooks{}, log.Nop())
	if err == nil {
		t.Fatal("expected error for missing samples file")
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	// Not parallel: sets the global query observer.
	defer postgres.SetQueryObserver(nil)

	reg := prometheus.NewRegistry()
	registerDBMetrics(reg)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	// vectors with no observations are not gathered
	for _, mf := range mfs {
		if mf.GetName() == "sift_db_query_duration_seconds" {
			t.Errorf("histogram gathered before any query was observed")
		}
	}
}

func TestNewRouter_ServesFeedbackAPI(t *testing.T) {
	t.Parallel()

	svc, keys := newTestService(t, &vc.Config{NotifyThreshold: 80})
	r := newRouter(feedbackapi.New(log.Nop(), svc, keys, "tok"))

	req := httptest.NewRequest(http.MethodGet, "/api/feedback", http.NoBody)
	req = req.WithContext(log.WithContext(req.Context(), log.Nop()))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/feedback = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/settings", http.NoBody)
	req = req.WithContext(log.WithContext(req.Context(), log.Nop()))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/settings without token = %d, want 401", rec.Code)
	}
}
