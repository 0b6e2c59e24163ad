package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"linkharvest/internal/config"
	"linkharvest/internal/model"
)

func newTestResolver(t *testing.T, client *http.Client) *GatewayResolver {
	t.Helper()
	fetcher := NewFetcher(client)
	gate := NewRateGate(0)
	targetRe := regexp.MustCompile(config.DefaultTargetPattern)
	return NewGatewayResolver(fetcher, gate, targetRe, nil)
}

// TestGatewayResolverResolve tests destination recovery from gateway pages.
func TestGatewayResolverResolve(t *testing.T) {
	t.Parallel()

	t.Run("recovers target from a timed redirect", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html><body>
				<p>Redirecting in 5 seconds...</p>
				<script>
					var count = 5;
					setTimeout(function() {
						window.location.href = 'https://chat.whatsapp.com/RESOLVED123';
					}, 5000);
				</script>
			</body></html>`))
		}))
		defer srv.Close()

		r := newTestResolver(t, srv.Client())
		target, kind, err := r.Resolve(context.Background(), srv.URL+"/group.php?id=1")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayResolved {
			t.Errorf("expected resolved kind, got %q", kind)
		}
		if target != "https://chat.whatsapp.com/RESOLVED123" {
			t.Errorf("unexpected target %q", target)
		}
	})

	t.Run("recovers target from a bare location assignment", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<script>location.href = "https://chat.whatsapp.com/BARE456";</script>`))
		}))
		defer srv.Close()

		r := newTestResolver(t, srv.Client())
		target, kind, err := r.Resolve(context.Background(), srv.URL+"/group.php?id=2")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayResolved || target != "https://chat.whatsapp.com/BARE456" {
			t.Errorf("got (%q, %q)", target, kind)
		}
	})

	t.Run("recovers target from location.replace", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<script>location.replace('https://chat.whatsapp.com/REPL789');</script>`))
		}))
		defer srv.Close()

		r := newTestResolver(t, srv.Client())
		target, kind, err := r.Resolve(context.Background(), srv.URL+"/group.php?id=3")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayResolved || target != "https://chat.whatsapp.com/REPL789" {
			t.Errorf("got (%q, %q)", target, kind)
		}
	})

	t.Run("falls back to a target anchor", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<body>
				<a href="/">Home</a>
				<a href="https://chat.whatsapp.com/ANCHOR1">Join now</a>
			</body>`))
		}))
		defer srv.Close()

		r := newTestResolver(t, srv.Client())
		target, kind, err := r.Resolve(context.Background(), srv.URL+"/group.php?id=4")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayResolved || target != "https://chat.whatsapp.com/ANCHOR1" {
			t.Errorf("got (%q, %q)", target, kind)
		}
	})

	t.Run("marks unresolved when no idiom matches", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<body><p>This group has been removed.</p><a href="/">Back</a></body>`))
		}))
		defer srv.Close()

		gatewayURL := srv.URL + "/group.php?id=5"
		r := newTestResolver(t, srv.Client())
		target, kind, err := r.Resolve(context.Background(), gatewayURL)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayUnresolved {
			t.Errorf("expected unresolved kind, got %q", kind)
		}
		if target != gatewayURL {
			t.Errorf("expected gateway URL kept as target, got %q", target)
		}
	})

	t.Run("follows server-side redirects straight to the target", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		// The landing page for the redirect target; the resolver only looks
		// at the final URL, not this body.
		mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html></html>"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		// A separate server whose gateway path 302s to a target-domain URL
		// is hard to fake without DNS; instead assert the idiom scan is
		// skipped when the final URL already matches the target pattern by
		// checking the finalURL branch with a doctored pattern.
		targetRe := regexp.MustCompile(regexp.QuoteMeta(srv.URL + "/landing"))
		mux.HandleFunc("/group.php", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/landing", http.StatusFound)
		})

		resolver := NewGatewayResolver(NewFetcher(srv.Client()), NewRateGate(0), targetRe, nil)
		target, kind, err := resolver.Resolve(context.Background(), srv.URL+"/group.php?id=6")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayResolved {
			t.Errorf("expected resolved kind, got %q", kind)
		}
		if target != srv.URL+"/landing" {
			t.Errorf("unexpected target %q", target)
		}
	})

	t.Run("surfaces fetch failures", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		r := newTestResolver(t, srv.Client())
		_, _, err := r.Resolve(context.Background(), srv.URL+"/group.php?id=7")
		if err == nil {
			t.Error("expected an error for a failed gateway fetch")
		}
	})

	t.Run("resolves relative redirect destinations", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<script>window.location = '/gone.html';</script>`))
		}))
		defer srv.Close()

		r := newTestResolver(t, srv.Client())
		target, kind, err := r.Resolve(context.Background(), srv.URL+"/group.php?id=8")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if kind != model.KindGatewayResolved {
			t.Errorf("expected resolved kind, got %q", kind)
		}
		if target != srv.URL+"/gone.html" {
			t.Errorf("expected absolute destination, got %q", target)
		}
	})
}

// TestFindRedirect tests the idiom table ordering on raw bodies.
func TestFindRedirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantURL   string
		wantIdiom string
	}{
		{
			name:      "timed redirect preferred over later assignment",
			body:      `setTimeout(function(){ window.location.href = 'https://a.example/1'; }, 3000);`,
			wantURL:   "https://a.example/1",
			wantIdiom: "timed-location",
		},
		{
			name:      "window.open",
			body:      `window.open("https://a.example/2", "_blank");`,
			wantURL:   "https://a.example/2",
			wantIdiom: "window-open",
		},
		{
			name:      "document.location",
			body:      `document.location = 'https://a.example/3';`,
			wantURL:   "https://a.example/3",
			wantIdiom: "location-assign",
		},
		{
			name: "no idiom",
			body: `<p>nothing here</p>`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotURL, gotIdiom := findRedirect(tt.body)
			if gotURL != tt.wantURL {
				t.Errorf("url: got %q, want %q", gotURL, tt.wantURL)
			}
			if gotIdiom != tt.wantIdiom {
				t.Errorf("idiom: got %q, want %q", gotIdiom, tt.wantIdiom)
			}
		})
	}
}
