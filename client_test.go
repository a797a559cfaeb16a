package dictcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	healthuc "github.com/kailas-cloud/dictcache/internal/usecase/health"
)

// fakeCatalog serves one dictionary and its form structure.
type fakeCatalog struct {
	collectionCalls atomic.Int32
	schemaCalls     atomic.Int32
	fail            atomic.Bool
}

func (f *fakeCatalog) handler() http.Handler {
	r := chi.NewRouter()
	r.Head("/", func(w http.ResponseWriter, _ *http.Request) {})
	r.Get("/api/core/", func(w http.ResponseWriter, req *http.Request) {
		if f.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		q := req.URL.Query()
		switch {
		case q.Get("action") == "form-structure":
			f.schemaCalls.Add(1)
			_, _ = w.Write([]byte(`[
				{"name":"id","type":"BigAutoField","default":null},
				{"name":"title","type":"CharField","default":"","max_length":200}
			]`))
		case q.Get("id") != "":
			_, _ = w.Write([]byte(`{"id":` + q.Get("id") + `}`))
		case q.Get("depth") != "":
			_, _ = w.Write([]byte(`[{"id":1,"depth":` + q.Get("depth") + `}]`))
		default:
			f.collectionCalls.Add(1)
			_, _ = w.Write([]byte(`[{"id":1,"title":"Acme"}]`))
		}
	})
	return r
}

var testDictionaries = []Dictionary{
	{Name: "Company", Path: "/api/core/?model=clients.Company", TTL: time.Hour},
	{Name: "Country", Path: "/api/core/?model=geo.Country", TTL: time.Hour},
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeCatalog) {
	t.Helper()
	fc := &fakeCatalog{}
	srv := httptest.NewServer(fc.handler())
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithToken("secret"),
		WithTimeout(5 * time.Second),
		WithDictionaries(testDictionaries...),
	}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, fc
}

func TestNew_NoBaseURL(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no base URL provided")
	}
}

func TestNew_InvalidDictionaries(t *testing.T) {
	_, err := New(context.Background(),
		WithBaseURL("http://localhost"),
		WithDictionaries(Dictionary{Name: "Company", Path: "/x", TTL: 0}),
	)
	if !errors.Is(err, ErrInvalidRegistry) {
		t.Fatalf("expected ErrInvalidRegistry, got %v", err)
	}
}

func TestNew_BuiltinRegistry(t *testing.T) {
	c, err := New(context.Background(), WithBaseURL("http://localhost"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(c.Dictionaries()) == 0 {
		t.Fatal("expected built-in dictionaries")
	}
}

func TestClient_GetDictionary_CachedWithinTTL(t *testing.T) {
	c, fc := newTestClient(t)
	ctx := context.Background()

	for range 3 {
		data, err := c.GetDictionary(ctx, "Company", false)
		if err != nil {
			t.Fatalf("GetDictionary: %v", err)
		}
		if string(data) != `[{"id":1,"title":"Acme"}]` {
			t.Fatalf("unexpected body %s", data)
		}
	}
	if n := fc.collectionCalls.Load(); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}

	if _, err := c.ForceRefresh(ctx, "Company"); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if n := fc.collectionCalls.Load(); n != 2 {
		t.Errorf("force must refetch, got %d calls", n)
	}
}

func TestClient_GetDictionary_Unknown(t *testing.T) {
	c, _ := newTestClient(t)

	data, err := c.GetDictionary(context.Background(), "Nope", false)
	if !errors.Is(err, ErrUnknownDictionary) {
		t.Fatalf("expected ErrUnknownDictionary, got %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected empty list, got %s", data)
	}
}

func TestClient_GetDictionary_StaleOnError(t *testing.T) {
	c, fc := newTestClient(t)
	ctx := context.Background()

	if _, err := c.GetDictionary(ctx, "Company", false); err != nil {
		t.Fatalf("GetDictionary: %v", err)
	}
	fc.fail.Store(true)

	data, err := c.GetDictionary(ctx, "Company", true)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if string(data) != `[{"id":1,"title":"Acme"}]` {
		t.Errorf("expected previous body, got %s", data)
	}
}

func TestClient_ListAndItem(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	list, err := c.GetDictionaryAsList(ctx, "Company", 2)
	if err != nil {
		t.Fatalf("GetDictionaryAsList: %v", err)
	}
	if string(list) != `[{"id":1,"depth":2}]` {
		t.Errorf("unexpected list %s", list)
	}

	item, err := c.GetDictionaryItemByID(ctx, "Company", "7")
	if err != nil {
		t.Fatalf("GetDictionaryItemByID: %v", err)
	}
	if string(item) != `{"id":7}` {
		t.Errorf("unexpected item %s", item)
	}
}

func TestClient_Structure(t *testing.T) {
	c, fc := newTestClient(t)
	ctx := context.Background()

	s, err := c.GetDictionaryStructure(ctx, "Company", false)
	if err != nil {
		t.Fatalf("GetDictionaryStructure: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 fields, got %d", s.Len())
	}

	f, err := c.GetModelStructureField(ctx, "Company", "title")
	if err != nil {
		t.Fatalf("GetModelStructureField: %v", err)
	}
	if f.Name != "title" {
		t.Errorf("unexpected field %+v", f)
	}
	if n := fc.schemaCalls.Load(); n != 1 {
		t.Errorf("structure must be fetched once, got %d", n)
	}

	if _, err := c.GetModelStructureField(ctx, "Company", "missing"); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestClient_PreloadAll(t *testing.T) {
	c, fc := newTestClient(t)

	report := c.PreloadAll(context.Background())
	if !report.OK() {
		t.Fatalf("unexpected failures: %+v", report)
	}
	if report.Total != 2 {
		t.Errorf("expected total 2, got %d", report.Total)
	}
	if fc.collectionCalls.Load() != 2 || fc.schemaCalls.Load() != 2 {
		t.Errorf("expected one call per dictionary, got %d/%d",
			fc.collectionCalls.Load(), fc.schemaCalls.Load())
	}
}

func TestClient_PreloadAll_Failures(t *testing.T) {
	c, fc := newTestClient(t)
	fc.fail.Store(true)

	report := c.PreloadAll(context.Background())
	if report.OK() {
		t.Fatal("expected failures")
	}
	if len(report.FailedCollections) != 2 || report.FailedCollections[0] != "Company" {
		t.Errorf("unexpected failed collections %v", report.FailedCollections)
	}
}

func TestClient_Health(t *testing.T) {
	c, _ := newTestClient(t)

	report := c.Health(context.Background())
	if report.Status != healthuc.Healthy {
		t.Errorf("expected healthy, got %q", report.Status)
	}
	if _, ok := report.Checks["snapshot"]; ok {
		t.Error("snapshot check must be absent without a snapshot store")
	}
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestClient(t, WithPrometheus(reg), WithLogger(zap.NewNop()))
	ctx := context.Background()

	_, _ = c.GetDictionary(ctx, "Company", false)
	_, _ = c.GetDictionary(ctx, "Company", false)
	_, _ = c.GetDictionary(ctx, "Nope", false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]int)
	for _, f := range families {
		names[f.GetName()] = len(f.GetMetric())
	}
	if names["dictcache_client_operations_total"] != 2 {
		t.Errorf("expected ok and error samples, got %d", names["dictcache_client_operations_total"])
	}
	if names["dictcache_client_lookups_total"] != 2 {
		t.Errorf("expected miss and hit samples, got %d", names["dictcache_client_lookups_total"])
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}

func TestOptions(t *testing.T) {
	cfg := &clientConfig{}
	WithBaseURL("http://catalog").apply(cfg)
	WithToken("t").apply(cfg)
	WithTimeout(3 * time.Second).apply(cfg)
	WithRedisSnapshot("localhost:6379", "pw").apply(cfg)
	WithSnapshotKeyPrefix("test:").apply(cfg)
	WithSnapshotTTL(time.Hour).apply(cfg)

	if cfg.baseURL != "http://catalog" || cfg.token != "t" || cfg.timeout != 3*time.Second {
		t.Errorf("unexpected transport settings %+v", cfg)
	}
	if len(cfg.snapshotAddrs) != 1 || cfg.snapshotPassword != "pw" {
		t.Errorf("unexpected snapshot settings %+v", cfg)
	}
	if cfg.snapshotPrefix != "test:" || cfg.snapshotTTL != time.Hour {
		t.Errorf("unexpected snapshot key settings %+v", cfg)
	}

	hc := &http.Client{}
	WithHTTPClient(hc).apply(cfg)
	if cfg.httpClient != hc {
		t.Error("expected http client to be set")
	}

	entries := []Dictionary{{Name: "A", Path: "/a", TTL: time.Second}}
	WithDictionaries(entries...).apply(cfg)
	entries[0].Name = "B"
	if cfg.dictionaries[0].Name != "A" {
		t.Error("WithDictionaries must copy its input")
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", "", time.Now(), nil)
	obs.observe("test", "", time.Now(), errors.New("err"))
	if obs.lookupCounter() != nil {
		t.Error("nil observer must have no lookup counter")
	}
}

func TestObserver_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second newObserver: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected collectors to be reused")
	}
}
