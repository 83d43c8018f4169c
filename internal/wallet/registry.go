package wallet

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrProviderUnavailable = errors.New("wallet provider unavailable")

// Environment exposes the host globals wallets inject themselves into.
type Environment interface {
	Lookup(global string) (Provider, bool)
}

// Globals is an in-process Environment keyed by global name.
type Globals map[string]Provider

// Lookup implements Environment.
func (g Globals) Lookup(global string) (Provider, bool) {
	p, ok := g[global]
	return p, ok && p != nil
}

// LiveGlobals is an Environment whose globals can come and go while a
// Registry reads it.
type LiveGlobals struct {
	mu      sync.RWMutex
	globals Globals
}

// NewLiveGlobals returns an empty LiveGlobals.
func NewLiveGlobals() *LiveGlobals {
	return &LiveGlobals{globals: Globals{}}
}

// Set installs p under global.
func (l *LiveGlobals) Set(global string, p Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globals[global] = p
}

// Delete removes global.
func (l *LiveGlobals) Delete(global string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.globals, global)
}

// Lookup implements Environment.
func (l *LiveGlobals) Lookup(global string) (Provider, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.globals.Lookup(global)
}

// Descriptor describes one known provider as seen by a detection pass.
type Descriptor struct {
	ID          ProviderID `json:"id"`
	DisplayName string     `json:"display_name"`
	Global      string     `json:"global"`
	Available   bool       `json:"available"`
}

// Detect probes env for every known provider, in priority order. It never
// calls into a provider beyond the OKX identity check MetaMask detection
// needs, and a probe that panics is reported unavailable.
func Detect(env Environment) []Descriptor {
	descriptors, _ := detect(env, log.Logger)
	return descriptors
}

func detect(env Environment, logger zerolog.Logger) ([]Descriptor, map[ProviderID]Provider) {
	descriptors := make([]Descriptor, 0, len(AllProviderIDs()))
	handles := make(map[ProviderID]Provider)

	for _, id := range AllProviderIDs() {
		p, err := probe(env, id)
		if err != nil {
			logger.Warn().Err(err).Str("provider", string(id)).Msg("provider detection failed")
		}
		available := err == nil && p != nil
		if available {
			handles[id] = p
		}
		descriptors = append(descriptors, Descriptor{
			ID:          id,
			DisplayName: id.DisplayName(),
			Global:      id.Global(),
			Available:   available,
		})
	}
	return descriptors, handles
}

func probe(env Environment, id ProviderID) (p Provider, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("probing %s: %v", id.Global(), r)
		}
	}()

	if env == nil {
		return nil, nil
	}
	p, ok := env.Lookup(id.Global())
	if !ok {
		return nil, nil
	}
	// OKX Wallet also answers as "ethereum"; that is not MetaMask.
	if id == ProviderMetaMask {
		if okx, ok := p.(OKXIdentifier); ok && okx.IsOKXWallet() {
			return nil, nil
		}
	}
	return p, nil
}

// Registry holds the most recent detection snapshot.
type Registry struct {
	env    Environment
	logger zerolog.Logger

	mu          sync.RWMutex
	descriptors []Descriptor
	handles     map[ProviderID]Provider
}

// NewRegistry creates a registry and runs the initial detection pass.
func NewRegistry(env Environment, logger zerolog.Logger) *Registry {
	r := &Registry{env: env, logger: logger}
	r.Refresh()
	return r
}

// Refresh re-runs detection and replaces the snapshot.
func (r *Registry) Refresh() []Descriptor {
	descriptors, handles := detect(r.env, r.logger)

	r.mu.Lock()
	r.descriptors = descriptors
	r.handles = handles
	r.mu.Unlock()

	r.logger.Debug().Int("available", len(handles)).Msg("wallet providers detected")
	return slices.Clone(descriptors)
}

// Descriptors returns every known provider, available or not.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.descriptors)
}

// Available returns the connectable providers in priority order.
func (r *Registry) Available() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Available {
			out = append(out, d)
		}
	}
	return out
}

// IsAvailable reports whether id was present in the last detection pass.
func (r *Registry) IsAvailable(id ProviderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[id]
	return ok
}

// Provider returns the handle detected for id.
func (r *Registry) Provider(id ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, id)
	}
	return p, nil
}
