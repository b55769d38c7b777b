package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// Registry maps browser tokens to their stores. A store leaves the registry
// when it is cleared or when it has been idle longer than the TTL.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	store    *Store
	lastSeen time.Time
	cancel   func()
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Registry{ttl: ttl, now: time.Now, entries: make(map[string]*entry)}
}

// Create issues a fresh token bound to an empty store.
func (r *Registry) Create() (string, *Store, error) {
	token, err := newToken()
	if err != nil {
		return "", nil, err
	}
	store := NewStore()

	r.mu.Lock()
	e := &entry{store: store, lastSeen: r.now()}
	r.entries[token] = e
	r.mu.Unlock()

	e.cancel = store.Subscribe(func(snap Snapshot) {
		if !snap.Present {
			r.drop(token, store)
		}
	})
	return token, store, nil
}

// Lookup returns the live store for token and marks it as used.
func (r *Registry) Lookup(token string) (*Store, bool) {
	if token == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[token]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.lastSeen) > r.ttl {
		return nil, false
	}
	e.lastSeen = now
	return e.store, true
}

// Revoke clears the store bound to token and forgets the token.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	e, ok := r.entries[token]
	if ok {
		delete(r.entries, token)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	e.store.Clear()
	if e.cancel != nil {
		e.cancel()
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep clears every store idle past the TTL and returns how many it removed.
func (r *Registry) Sweep() int {
	now := r.now()
	var expired []*entry

	r.mu.Lock()
	for token, e := range r.entries {
		if now.Sub(e.lastSeen) > r.ttl {
			expired = append(expired, e)
			delete(r.entries, token)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.store.Clear()
		if e.cancel != nil {
			e.cancel()
		}
	}
	return len(expired)
}

// Run sweeps on interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) drop(token string, store *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[token]; ok && e.store == store {
		delete(r.entries, token)
	}
}

// HashToken is the form a token is recorded in anywhere outside the registry.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
