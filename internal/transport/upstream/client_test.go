package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/dictcache/internal/domain"
	"github.com/kailas-cloud/dictcache/internal/domain/registry"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
)

// recordingServer is a fake catalog API that records every query string it receives.
type recordingServer struct {
	mu      sync.Mutex
	queries []url.Values
	auth    []string
	respond func(w http.ResponseWriter, q url.Values)
}

func (s *recordingServer) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/core/", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, req.URL.Query())
		s.auth = append(s.auth, req.Header.Get("Authorization"))
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		s.respond(w, req.URL.Query())
	})
	return r
}

func newTestClient(t *testing.T, respond func(w http.ResponseWriter, q url.Values)) (*Client, *recordingServer) {
	t.Helper()
	rs := &recordingServer{respond: respond}
	srv := httptest.NewServer(rs.handler())
	t.Cleanup(srv.Close)
	c := NewClient(&Config{BaseURL: srv.URL + "/", Token: "secret", Timeout: 5 * time.Second})
	return c, rs
}

var companyEntry = registry.Entry{Name: "Company", Path: "/api/core/?model=clients.Company", TTL: time.Hour}

func TestFetchCollection(t *testing.T) {
	c, rs := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1}]}`))
	})

	body, err := c.FetchCollection(context.Background(), companyEntry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"success":true,"data":[{"id":1}]}` {
		t.Errorf("body must be returned verbatim, got %s", body)
	}
	if len(rs.queries) != 1 {
		t.Fatalf("expected 1 request, got %d", len(rs.queries))
	}
	q := rs.queries[0]
	if q.Get("model") != "clients.Company" {
		t.Errorf("unexpected model param %q", q.Get("model"))
	}
	if len(q) != 1 {
		t.Errorf("collection request must not add params, got %v", q)
	}
	if rs.auth[0] != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", rs.auth[0])
	}
}

func TestFetchCollectionAsList(t *testing.T) {
	c, rs := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`[]`))
	})

	if _, err := c.FetchCollectionAsList(context.Background(), companyEntry, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := rs.queries[0]
	if q.Get("depth") != "2" || q.Get("model") != "clients.Company" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestFetchItem(t *testing.T) {
	c, rs := newTestClient(t, func(w http.ResponseWriter, q url.Values) {
		_, _ = w.Write([]byte(`{"id":"` + q.Get("id") + `"}`))
	})

	body, err := c.FetchItem(context.Background(), companyEntry, "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"id":"42"}` {
		t.Errorf("unexpected body %s", body)
	}
	if rs.queries[0].Get("id") != "42" {
		t.Errorf("expected id=42, got %v", rs.queries[0])
	}
}

func TestFetchSchema_BareArray(t *testing.T) {
	c, rs := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`[
			{"name":"id","type":"BigAutoField","default":null},
			{"name":"title","type":"CharField","default":"","max_length":200}
		]`))
	})

	fields, err := c.FetchSchema(context.Background(), companyEntry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 || fields[0].Name != "id" || fields[1].Name != "title" {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if fields[0].Kind != field.KindIdentity {
		t.Errorf("expected identity kind, got %q", fields[0].Kind)
	}
	if rs.queries[0].Get("action") != "form-structure" {
		t.Errorf("expected action=form-structure, got %v", rs.queries[0])
	}
}

func TestFetchSchema_Envelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`{"success":true,"model":"Company","app":"clients","fields":[
			{"name":"owner","type":"Relation","related_model":"User","related_app":"auth"}
		]}`))
	})

	fields, err := c.FetchSchema(context.Background(), companyEntry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 1 || fields[0].Kind != field.KindRelation {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestFetchSchema_NoFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})

	if _, err := c.FetchSchema(context.Background(), companyEntry); err == nil {
		t.Fatal("expected error for envelope without fields")
	}
}

func TestFetch_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Model Company not found"}`))
	})

	_, err := c.FetchCollection(context.Background(), companyEntry)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusNotFound || se.Message != "Model Company not found" {
		t.Errorf("unexpected status error %+v", se)
	}
}

func TestFetch_InvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.FetchCollection(context.Background(), companyEntry)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(&Config{BaseURL: base, Timeout: time.Second})
	_, err := c.FetchCollection(context.Background(), companyEntry)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestWithQuery(t *testing.T) {
	tests := []struct {
		path   string
		params url.Values
		want   string
	}{
		{"/api/core/?model=a.B", nil, "/api/core/?model=a.B"},
		{"/api/core/?model=a.B", url.Values{"id": {"7"}}, "/api/core/?model=a.B&id=7"},
		{"/api/plain/", url.Values{"depth": {"1"}}, "/api/plain/?depth=1"},
		{"/api/core/?", url.Values{"id": {"1"}}, "/api/core/?id=1"},
	}

	for _, tc := range tests {
		if got := withQuery(tc.path, tc.params); got != tc.want {
			t.Errorf("withQuery(%q, %v) = %q, want %q", tc.path, tc.params, got, tc.want)
		}
	}
}

func TestExtractError(t *testing.T) {
	if got := extractError([]byte(`{"detail":"nope"}`)); got != "nope" {
		t.Errorf("expected detail message, got %q", got)
	}
	if got := extractError([]byte(`plain text`)); got != "plain text" {
		t.Errorf("expected raw body, got %q", got)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	c := NewClient(&Config{BaseURL: srv.URL, Timeout: time.Second})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("any HTTP response must count as reachable: %v", err)
	}
}
