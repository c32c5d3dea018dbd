// Package offline keeps copies of the page's third-party assets so they can
// be served when the upstream CDN is unreachable.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/aruba-countdown/internal/cache"
)

const (
	httpTimeout  = 10 * time.Second
	maxAssetSize = 4 << 20
)

var (
	// ErrUnknownAsset is returned for names outside the declared asset list.
	ErrUnknownAsset = errors.New("unknown offline asset")
	// ErrUnavailable is returned when the network failed and nothing is cached.
	ErrUnavailable = errors.New("asset unavailable offline")
)

// DefaultAssets are the third-party assets the page depends on.
var DefaultAssets = map[string]string{
	"tailwind": "https://cdn.tailwindcss.com",
	"icon":     "https://img.icons8.com/fluency/512/beach.png",
	"fonts":    "https://fonts.googleapis.com/css2?family=Plus+Jakarta+Sans:wght@300;400;500;600;700;800&family=Pacifico&family=Caveat:wght@400;700&display=swap",
}

// Store is the cache backing the worker. *cache.AssetCache satisfies it.
type Store interface {
	Get(ctx context.Context, url string) (*cache.Asset, error)
	Set(ctx context.Context, a *cache.Asset) error
}

// Worker serves declared assets stale-while-revalidate.
type Worker struct {
	assets map[string]string
	store  Store
	client *http.Client
	log    *slog.Logger

	// refreshing dedupes background refreshes per URL.
	mu         sync.Mutex
	refreshing map[string]bool
	closed     bool
	wg         sync.WaitGroup
}

// NewWorker constructs a Worker. A nil store makes it a pass-through.
func NewWorker(assets map[string]string, store Store, log *slog.Logger) *Worker {
	return &Worker{
		assets:     assets,
		store:      store,
		client:     &http.Client{Timeout: httpTimeout},
		log:        log,
		refreshing: make(map[string]bool),
	}
}

// Precache fetches every declared asset in parallel and stores the ones that succeed.
// Individual failures are logged, not returned.
func (w *Worker) Precache(ctx context.Context) error {
	if w.store == nil {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	for name, url := range w.assets {
		g.Go(func() error {
			a, err := w.fetch(gCtx, url)
			if err != nil {
				w.log.Warn("precache fetch failed", "asset", name, "err", err)
				return nil
			}
			if err := w.store.Set(gCtx, a); err != nil {
				w.log.Warn("precache store failed", "asset", name, "err", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("precaching offline assets: %w", err)
	}
	return nil
}

// Serve returns the named asset. A cached copy is returned immediately and
// refreshed in the background; otherwise the network response is returned
// and cached when it succeeded.
func (w *Worker) Serve(ctx context.Context, name string) (*cache.Asset, error) {
	url, ok := w.assets[name]
	if !ok {
		return nil, ErrUnknownAsset
	}

	if w.store != nil {
		cached, err := w.store.Get(ctx, url)
		if err != nil {
			w.log.Warn("offline cache read failed", "asset", name, "err", err)
		}
		if cached != nil {
			w.revalidate(name, url)
			return cached, nil
		}
	}

	a, err := w.fetch(ctx, url)
	if err != nil {
		w.log.Warn("offline asset fetch failed", "asset", name, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}

	if w.store != nil {
		if err := w.store.Set(ctx, a); err != nil {
			w.log.Warn("offline cache write failed", "asset", name, "err", err)
		}
	}
	return a, nil
}

// Wait blocks until background refreshes have finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Close stops new background refreshes and waits for running ones.
// Serve keeps answering from the cache and the network afterwards.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) revalidate(name, url string) {
	w.mu.Lock()
	if w.closed || w.refreshing[url] {
		w.mu.Unlock()
		return
	}
	w.refreshing[url] = true
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			delete(w.refreshing, url)
			w.mu.Unlock()
			w.wg.Done()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		defer cancel()

		a, err := w.fetch(ctx, url)
		if err != nil {
			w.log.Debug("offline revalidate failed, keeping cached copy", "asset", name, "err", err)
			return
		}
		if err := w.store.Set(ctx, a); err != nil {
			w.log.Warn("offline cache write failed", "asset", name, "err", err)
		}
	}()
}

// fetch performs a GET and returns the body when the status is 200.
func (w *Worker) fetch(ctx context.Context, url string) (*cache.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	return &cache.Asset{
		URL:         url,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
