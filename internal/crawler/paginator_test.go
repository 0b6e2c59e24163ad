package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"linkharvest/internal/config"
	"linkharvest/internal/model"
)

func newTestPaginator(t *testing.T, client *http.Client, results *ResultSet) *Paginator {
	t.Helper()
	fetcher := NewFetcher(client)
	extractor := newTestExtractor(t)
	return NewPaginator(fetcher, NewRateGate(0), extractor, results, nil)
}

// TestPaginatorRun tests incremental-load sequencing and end conditions.
func TestPaginatorRun(t *testing.T) {
	t.Parallel()

	t.Run("fetches batches until an empty response", func(t *testing.T) {
		t.Parallel()

		// Three batches of links, then an empty body.
		var counts []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			count := r.PostFormValue("commentNewCount")
			counts = append(counts, count)

			n, _ := strconv.Atoi(count)
			if n > 36 {
				return // empty body ends the run
			}
			fmt.Fprintf(w, `<a href="https://chat.whatsapp.com/BATCH%s">g</a>`, count)
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		fetches, err := p.Run(context.Background(), PaginationSeed{
			BaseURL: srv.URL,
			Endpoint: config.Endpoint{
				Path:          "/load-more-cat.php",
				CountParam:    "commentNewCount",
				CategoryParam: "catid",
				Start:         12,
				Stride:        12,
			},
			CategoryID: 3,
		})
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		// 12, 24, 36 deliver links; 48 is empty and ends the run.
		if fetches != 4 {
			t.Errorf("expected 4 fetches, got %d", fetches)
		}
		want := []string{"12", "24", "36", "48"}
		if len(counts) != len(want) {
			t.Fatalf("expected counts %v, got %v", want, counts)
		}
		for i := range want {
			if counts[i] != want[i] {
				t.Errorf("fetch %d: expected count %s, got %s", i, want[i], counts[i])
			}
		}
		if results.Len() != 3 {
			t.Errorf("expected 3 collected links, got %d", results.Len())
		}
	})

	t.Run("links from batches carry the paginated kind", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				_, _ = w.Write([]byte(`<a href="https://chat.whatsapp.com/PAGED1">g</a>`))
			}
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		if _, err := p.Run(context.Background(), PaginationSeed{
			BaseURL:  srv.URL,
			Endpoint: config.Endpoint{Path: "/more-groups.php", CountParam: "commentNewCount", Start: 16, Stride: 8},
		}); err != nil {
			t.Fatalf("run failed: %v", err)
		}

		links := results.Links()
		if len(links) != 1 {
			t.Fatalf("expected 1 link, got %d", len(links))
		}
		if links[0].Kind != model.KindPaginated {
			t.Errorf("expected kind %q, got %q", model.KindPaginated, links[0].Kind)
		}
	})

	t.Run("stops when a batch adds nothing new", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			// Every batch repeats the same link.
			_, _ = w.Write([]byte(`<a href="https://chat.whatsapp.com/SAME">g</a>`))
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		fetches, err := p.Run(context.Background(), PaginationSeed{
			BaseURL:  srv.URL,
			Endpoint: config.Endpoint{Path: "/more-groups.php", CountParam: "commentNewCount", Start: 16, Stride: 8},
		})
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		// Batch 1 adds the link; batch 2 adds nothing and ends the run.
		if fetches != 2 {
			t.Errorf("expected 2 fetches, got %d", fetches)
		}
		if results.Len() != 1 {
			t.Errorf("expected 1 link, got %d", results.Len())
		}
	})

	t.Run("stops on the sentinel substring", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			fmt.Fprintf(w, `<a href="https://chat.whatsapp.com/S%d">g</a>`, n)
			if n == 2 {
				_, _ = w.Write([]byte(`<div class="no-more">No more groups</div>`))
			}
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		fetches, err := p.Run(context.Background(), PaginationSeed{
			BaseURL: srv.URL,
			Endpoint: config.Endpoint{
				Path:       "/more-groups.php",
				CountParam: "commentNewCount",
				Start:      16,
				Stride:     8,
				Sentinel:   "No more groups",
			},
		})
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if fetches != 2 {
			t.Errorf("expected the sentinel to end the run at 2 fetches, got %d", fetches)
		}
	})

	t.Run("omits the category field for site-wide endpoints", func(t *testing.T) {
		t.Parallel()

		var sawCat atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostFormValue("catid") != "" {
				sawCat.Store(true)
			}
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		if _, err := p.Run(context.Background(), PaginationSeed{
			BaseURL:    srv.URL,
			Endpoint:   config.Endpoint{Path: "/more-groups.php", CountParam: "commentNewCount", Start: 16, Stride: 8},
			CategoryID: 9,
		}); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if sawCat.Load() {
			t.Error("category field sent for an endpoint without a category param")
		}
	})

	t.Run("runs past hundreds of batches without truncating", func(t *testing.T) {
		t.Parallel()

		// 600 batches each with a fresh link, then an empty body.
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			if n > 600 {
				return
			}
			fmt.Fprintf(w, `<a href="https://chat.whatsapp.com/LONG%d">g</a>`, n)
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		fetches, err := p.Run(context.Background(), PaginationSeed{
			BaseURL:  srv.URL,
			Endpoint: config.Endpoint{Path: "/more-groups.php", CountParam: "commentNewCount", Start: 16, Stride: 8},
		})
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if fetches != 601 {
			t.Errorf("expected 601 fetches, got %d", fetches)
		}
		if results.Len() != 600 {
			t.Errorf("expected 600 links, got %d", results.Len())
		}
	})

	t.Run("cancellation stops an endless feed", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Every batch delivers a fresh link, so no end condition ever fires.
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 5 {
				cancel()
			}
			fmt.Fprintf(w, `<a href="https://chat.whatsapp.com/FEED%d">g</a>`, calls.Load())
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		if _, err := p.Run(ctx, PaginationSeed{
			BaseURL:  srv.URL,
			Endpoint: config.Endpoint{Path: "/more-groups.php", CountParam: "commentNewCount", Start: 16, Stride: 8},
		}); err == nil {
			t.Fatal("expected a cancellation error")
		}
	})

	t.Run("returns collected fetch count on error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			if n >= 2 {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			fmt.Fprintf(w, `<a href="https://chat.whatsapp.com/E%d">g</a>`, n)
		}))
		defer srv.Close()

		results := NewResultSet()
		p := newTestPaginator(t, srv.Client(), results)
		fetches, err := p.Run(context.Background(), PaginationSeed{
			BaseURL:  srv.URL,
			Endpoint: config.Endpoint{Path: "/more-groups.php", CountParam: "commentNewCount", Start: 16, Stride: 8},
		})
		if err == nil {
			t.Fatal("expected an error")
		}
		if fetches != 1 {
			t.Errorf("expected 1 completed fetch before the error, got %d", fetches)
		}
		// Links from the successful batch stay collected.
		if results.Len() != 1 {
			t.Errorf("expected 1 link, got %d", results.Len())
		}
	})
}
