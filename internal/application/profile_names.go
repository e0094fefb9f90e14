package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/convtree/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// profileNames memoizes display names per pubkey. Lookups never block: a miss
// returns the fallback and resolves in the background.
type profileNames struct {
	source     ports.ProfileSource
	spawn      func(func(ctx context.Context)) bool
	onResolved func()
	logger     *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	names    map[string]string
	inflight map[string]struct{}
	misses   map[string]struct{}
}

func newProfileNames(source ports.ProfileSource, spawn func(func(ctx context.Context)) bool, onResolved func(), logger *zap.Logger) *profileNames {
	return &profileNames{
		source:     source,
		spawn:      spawn,
		onResolved: onResolved,
		logger:     logger,
		names:      map[string]string{},
		inflight:   map[string]struct{}{},
		misses:     map[string]struct{}{},
	}
}

func (p *profileNames) Lookup(pubkey, fallback string) string {
	if pubkey == "" {
		return fallback
	}

	p.mu.Lock()
	if name, ok := p.names[pubkey]; ok {
		p.mu.Unlock()
		return name
	}
	_, missed := p.misses[pubkey]
	_, pending := p.inflight[pubkey]
	canFetch := p.source != nil && !missed && !pending
	if canFetch {
		p.inflight[pubkey] = struct{}{}
	}
	p.mu.Unlock()

	if canFetch && !p.spawn(func(ctx context.Context) { p.fetch(ctx, pubkey) }) {
		p.mu.Lock()
		delete(p.inflight, pubkey)
		p.mu.Unlock()
	}

	if fallback == "" {
		return pubkey
	}
	return fallback
}

// Resolve fetches (or returns the memoized) name, sharing concurrent calls per pubkey.
func (p *profileNames) Resolve(ctx context.Context, pubkey string) (string, error) {
	p.mu.Lock()
	if name, ok := p.names[pubkey]; ok {
		p.mu.Unlock()
		return name, nil
	}
	p.mu.Unlock()

	if p.source == nil {
		return "", fmt.Errorf("resolve profile name %s: no profile source", pubkey)
	}

	value, err, _ := p.group.Do(pubkey, func() (any, error) {
		return p.source.ProfileName(ctx, pubkey)
	})
	if err != nil {
		return "", fmt.Errorf("resolve profile name %s: %w", pubkey, err)
	}

	name := strings.TrimSpace(value.(string))
	if name == "" {
		return "", fmt.Errorf("resolve profile name %s: empty name", pubkey)
	}

	p.mu.Lock()
	p.names[pubkey] = name
	p.mu.Unlock()

	return name, nil
}

func (p *profileNames) fetch(ctx context.Context, pubkey string) {
	_, err := p.Resolve(ctx, pubkey)

	p.mu.Lock()
	delete(p.inflight, pubkey)
	if err != nil && ctx.Err() == nil {
		p.misses[pubkey] = struct{}{}
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("profile name unresolved, keeping fallback", zap.String("pubkey", pubkey), zap.Error(err))
		return
	}

	if p.onResolved != nil {
		p.onResolved()
	}
}

// Retain drops every cached entry whose pubkey is not in keep.
func (p *profileNames) Retain(keep map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for pubkey := range p.names {
		if _, ok := keep[pubkey]; !ok {
			delete(p.names, pubkey)
		}
	}
	for pubkey := range p.misses {
		if _, ok := keep[pubkey]; !ok {
			delete(p.misses, pubkey)
		}
	}
}

func (p *profileNames) cached(pubkey string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, ok := p.names[pubkey]
	return name, ok
}
