// internal/generator/generator.go
//
// On-demand snapshot generation.
//
/*
Context
--------
When both snapshot tiers miss, the edge asks the external renderer to
produce and persist one, then re-reads the cache exactly once.  A second
miss after a successful invocation is GenerationFailed (a 503 at the
boundary), never retried within the same request: that bounds per-request
latency and avoids recursive generation under renderer failure.

Concurrent misses on the same (reference, domain) key are collapsed with a
singleflight group, the same primitive the domain cache uses for cold
loads.  The render call itself runs on a context detached from the first
caller and bounded by the configured timeout, so one disconnecting client
neither cancels work other waiters need nor leaves an unbounded call in
flight; each waiter still honours its own request context via DoChan.

The renderer returns only success or failure; no payload is read back.  The
snapshot row it wrote is picked up by the cache re-read.
*/
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/schalder/ecombuildr-edge/internal/content"
	"github.com/schalder/ecombuildr-edge/internal/metrics"
	"github.com/schalder/ecombuildr-edge/internal/snapshot"
)

// ErrGenerationFailed is returned when the renderer was invoked but no
// snapshot appeared on the follow-up read.
var ErrGenerationFailed = errors.New("snapshot generation failed")

// Generator invokes the external renderer and re-reads the snapshot store.
type Generator struct {
	snaps    *snapshot.Store
	endpoint string
	client   *http.Client
	timeout  time.Duration
	sfg      singleflight.Group
}

// New constructs a Generator.  timeout bounds one render invocation plus
// the cache re-read.
func New(snaps *snapshot.Store, endpoint string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Generator{
		snaps:    snaps,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

// renderRequest is the wire shape the renderer expects.
type renderRequest struct {
	ContentType  string `json:"content_type"`
	ContentID    uint64 `json:"content_id"`
	CustomDomain string `json:"custom_domain,omitempty"`
}

// Ensure produces a snapshot for ref when none exists and returns it.
// Callers should have checked the cache already; Ensure always invokes the
// renderer (via the coalescing group) and reads once after.
func (g *Generator) Ensure(ctx context.Context, ref content.Ref, customDomain string) (*snapshot.Snapshot, error) {
	key := ref.String() + "|" + customDomain

	ch := g.sfg.DoChan(key, func() (any, error) {
		// Detached from the initiating caller, bounded by the render timeout.
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.generate(genCtx, ref, customDomain)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot.Snapshot), nil
	}
}

func (g *Generator) generate(ctx context.Context, ref content.Ref, customDomain string) (*snapshot.Snapshot, error) {
	metrics.GenerationTotal.Inc()

	body, err := json.Marshal(renderRequest{
		ContentType:  string(ref.Kind),
		ContentID:    ref.ID,
		CustomDomain: customDomain,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.GenerationFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: renderer call: %v", ErrGenerationFailed, err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GenerationFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: renderer status %d", ErrGenerationFailed, resp.StatusCode)
	}

	// Exactly one re-read.  The renderer writes the row before answering,
	// so a miss here means it lied or wrote the wrong key.
	snap, _, err := g.snaps.Get(ctx, ref, customDomain)
	if err != nil {
		metrics.GenerationFailuresTotal.Inc()
		if errors.Is(err, snapshot.ErrMiss) {
			return nil, fmt.Errorf("%w: no snapshot after render of %s", ErrGenerationFailed, ref)
		}
		return nil, err
	}
	return snap, nil
}
