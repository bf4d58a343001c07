package nostr

import (
	"context"
	"fmt"
	"sync"

	gonostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// RelayClient is the event-log boundary: best-effort query (duplicates and
// gaps possible, no exactly-once guarantee) and publish. Every call must be
// bounded by the caller's context.
type RelayClient interface {
	Query(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error)
	Publish(ctx context.Context, ev gonostr.Event) error
}

// Pool is a RelayClient over one or more relays, with lazy dialing and
// redial-on-failure. Results from multiple relays are merged and deduplicated
// by event id.
type Pool struct {
	urls []string
	log  *zap.Logger

	mu     sync.Mutex
	relays map[string]*gonostr.Relay
}

func NewPool(urls []string, log *zap.Logger) *Pool {
	return &Pool{
		urls:   urls,
		log:    log,
		relays: make(map[string]*gonostr.Relay),
	}
}

func (p *Pool) relay(ctx context.Context, url string) (*gonostr.Relay, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.relays[url]; ok {
		return r, nil
	}

	r, err := gonostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to relay %s: %w", url, err)
	}
	p.relays[url] = r
	return r, nil
}

func (p *Pool) drop(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.relays[url]; ok {
		_ = r.Close()
		delete(p.relays, url)
	}
}

// Query fans the filters out to all relays and merges the results. It fails
// only when every relay fails; partial availability returns partial results.
func (p *Pool) Query(ctx context.Context, filters gonostr.Filters) ([]*gonostr.Event, error) {
	var (
		events  []*gonostr.Event
		seen    = make(map[string]bool)
		lastErr error
		ok      bool
	)

	for _, url := range p.urls {
		r, err := p.relay(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}

		var failed bool
		for _, f := range filters {
			evs, err := r.QuerySync(ctx, f)
			if err != nil {
				lastErr = err
				failed = true
				break
			}
			for _, ev := range evs {
				if ev == nil || seen[ev.ID] {
					continue
				}
				seen[ev.ID] = true
				events = append(events, ev)
			}
		}
		if failed {
			p.drop(url)
			continue
		}
		ok = true
	}

	if !ok && lastErr != nil {
		return nil, lastErr
	}
	return events, nil
}

// Publish sends the event to all relays; one acknowledgement is enough.
func (p *Pool) Publish(ctx context.Context, ev gonostr.Event) error {
	var (
		lastErr error
		acked   bool
	)

	for _, url := range p.urls {
		r, err := p.relay(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if err := r.Publish(ctx, ev); err != nil {
			p.log.Debug("publish failed", zap.String("relay", url), zap.Error(err))
			lastErr = err
			p.drop(url)
			continue
		}
		acked = true
	}

	if !acked {
		if lastErr != nil {
			return fmt.Errorf("publish: %w", lastErr)
		}
		return fmt.Errorf("publish: no relays configured")
	}
	return nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for url, r := range p.relays {
		_ = r.Close()
		delete(p.relays, url)
	}
}
