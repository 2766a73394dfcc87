package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type memoryBlobStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  bool
}

func (m *memoryBlobStore) Save(_ context.Context, data []byte, folder, name string) (string, error) {
	if m.fail {
		return "", errors.New("blob store unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	key := folder + "/" + name
	m.saved[key] = data
	return "http://blobs.local/" + key, nil
}

func newTestClient(t *testing.T, upstream http.HandlerFunc, store *memoryBlobStore) *Client {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)
	if store == nil {
		store = &memoryBlobStore{}
	}
	return NewClient("test-key", rate.NewLimiter(rate.Inf, 1), store, time.Second, zap.NewNop(), WithBaseURL(server.URL))
}

func TestClient_Search(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/textsearch/json" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("query"); got != "visa consultant in Delhi" {
				t.Fatalf("unexpected query: %s", got)
			}
			w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"One"},{"place_id":"p2","name":"Two"}]}`))
		}, nil)

		results, err := client.Search(context.Background(), "visa consultant in Delhi", "", 50000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 2 || results[0].PlaceID != "p1" {
			t.Fatalf("unexpected results: %+v", results)
		}
	})

	t.Run("zero results is not an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}, nil)

		results, err := client.Search(context.Background(), "nothing here", "", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("expected empty results")
		}
	})

	t.Run("upstream error status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"quota exceeded"}`))
		}, nil)

		_, err := client.Search(context.Background(), "anything", "", 0)
		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("expected UpstreamError, got %v", err)
		}
		if upstreamErr.Status != "OVER_QUERY_LIMIT" {
			t.Fatalf("unexpected status: %s", upstreamErr.Status)
		}
	})
}

func TestClient_Details(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/details/json" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("place_id"); got != "p1" {
				t.Fatalf("unexpected place_id: %s", got)
			}
			w.Write([]byte(`{"status":"OK","result":{"place_id":"p1","name":"One","rating":4.2}}`))
		}, nil)

		detail, err := client.Details(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if detail.Name != "One" || detail.Rating != 4.2 {
			t.Fatalf("unexpected detail: %+v", detail)
		}
	})

	t.Run("not found status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"NOT_FOUND"}`))
		}, nil)

		_, err := client.Details(context.Background(), "missing")
		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("expected UpstreamError, got %v", err)
		}
	})
}

func TestClient_SavePhotos(t *testing.T) {
	t.Run("stores up to max with slot order", func(t *testing.T) {
		store := &memoryBlobStore{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("image:" + r.URL.Query().Get("photoreference")))
		}, store)

		refs := []PhotoRef{
			{Reference: "r0", Height: 100, Width: 200, HTMLAttributions: []string{"author"}},
			{Reference: "r1"}, {Reference: "r2"}, {Reference: "r3"},
			{Reference: "r4"}, {Reference: "r5"},
		}
		images, err := client.SavePhotos(context.Background(), "p1", refs, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(images) != 5 {
			t.Fatalf("expected 5 images, got %d", len(images))
		}
		for i, img := range images {
			if img.Position != i {
				t.Fatalf("expected slot order, got position %d at index %d", img.Position, i)
			}
		}
		if images[0].Attribution == nil || *images[0].Attribution != "author" {
			t.Fatalf("expected attribution on first image")
		}
		if string(store.saved["businesses/p1_0.jpg"]) != "image:r0" {
			t.Fatalf("unexpected stored bytes: %q", store.saved["businesses/p1_0.jpg"])
		}
	})

	t.Run("failed photo leaves slot empty", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("photoreference") == "bad" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte("ok"))
		}, nil)

		refs := []PhotoRef{{Reference: "good"}, {Reference: "bad"}}
		images, err := client.SavePhotos(context.Background(), "p1", refs, 5)
		if err != nil {
			t.Fatalf("photo failures must not fail the call: %v", err)
		}
		if len(images) != 1 || images[0].Position != 0 {
			t.Fatalf("expected only the good slot, got %+v", images)
		}
	})

	t.Run("blob store failure tolerated", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}, &memoryBlobStore{fail: true})

		images, err := client.SavePhotos(context.Background(), "p1", []PhotoRef{{Reference: "r"}}, 5)
		if err != nil {
			t.Fatalf("store failures must not fail the call: %v", err)
		}
		if len(images) != 0 {
			t.Fatalf("expected no images, got %d", len(images))
		}
	})
}
