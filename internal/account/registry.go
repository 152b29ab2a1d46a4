package account

import (
	"fmt"
	"sync"

	"github.com/antigravity-proxy/core/internal/events"
)

// CredentialSource reloads the account set from wherever credentials are
// stored — out of scope for this spec beyond this contract (spec §2: "the
// translation/transport collaborator"). Reload uses it to pick up
// externally-added or -removed credentials without restarting.
type CredentialSource interface {
	Load() ([]*Account, error)
}

// Registry is the account registry (C2): O(1) lookup by email, CRUD, and
// system-event emission on lifecycle changes.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	recorder *events.Recorder
	source   CredentialSource
}

// NewRegistry creates an empty registry.
func NewRegistry(recorder *events.Recorder, source CredentialSource) *Registry {
	return &Registry{
		accounts: make(map[string]*Account),
		recorder: recorder,
		source:   source,
	}
}

// List returns a snapshot slice of all accounts. The returned *Account
// pointers are live — callers must go through WithLock to mutate health.
func (r *Registry) List() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out
}

// Get looks up an account by email in O(1).
func (r *Registry) Get(email string) (*Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[email]
	return a, ok
}

// Add inserts a new account. Emits a system event.
func (r *Registry) Add(a *Account) {
	r.mu.Lock()
	r.accounts[a.Email] = a
	r.mu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordSystem(fmt.Sprintf("account added: %s", a.Email), map[string]interface{}{
			"action":  "add",
			"account": a.Email,
		})
	}
}

// Remove deletes an account and cascades removal of any referencing
// state (spec §4.2: "cascades to any pinned routing state in C7" — the
// router holds no per-account state of its own, so this is a no-op beyond
// the map delete). Emits a system event.
func (r *Registry) Remove(email string) bool {
	r.mu.Lock()
	_, existed := r.accounts[email]
	delete(r.accounts, email)
	r.mu.Unlock()

	if existed && r.recorder != nil {
		r.recorder.RecordSystem(fmt.Sprintf("account removed: %s", email), map[string]interface{}{
			"action":  "remove",
			"account": email,
		})
	}
	return existed
}

// SetEnabled flips the enabled flag and emits a system event (spec §4.2).
func (r *Registry) SetEnabled(email string, enabled bool) bool {
	r.mu.RLock()
	a, ok := r.accounts[email]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	a.WithLock(func(a *Account) { a.Enabled = enabled })

	if r.recorder != nil {
		action := "disabled"
		if enabled {
			action = "enabled"
		}
		r.recorder.RecordSystem(fmt.Sprintf("account %s: %s", action, email), map[string]interface{}{
			"action":  action,
			"account": email,
		})
	}
	return true
}

// Reload rereads the account set from the credential source, adding new
// accounts and removing ones no longer present. Existing accounts keep
// their in-memory health state.
func (r *Registry) Reload() error {
	if r.source == nil {
		return nil
	}
	fresh, err := r.source.Load()
	if err != nil {
		return err
	}

	freshByEmail := make(map[string]*Account, len(fresh))
	for _, a := range fresh {
		freshByEmail[a.Email] = a
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for email := range r.accounts {
		if _, ok := freshByEmail[email]; !ok {
			delete(r.accounts, email)
		}
	}
	for email, a := range freshByEmail {
		if _, ok := r.accounts[email]; !ok {
			r.accounts[email] = a
		}
	}
	return nil
}
