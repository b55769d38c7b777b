package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

// Snapshot is what observers and readers see: either a complete session or
// absence.
type Snapshot struct {
	Session domain.Session
	Present bool
}

type Observer func(Snapshot)

// Store owns the session of a single browser session. Mutations and their
// notifications are serialized, so observers see changes in the order the
// calls were made. Observers run before Establish/Clear return; they may call
// Current but must not call Establish or Clear.
type Store struct {
	opMu sync.Mutex

	mu        sync.RWMutex
	current   *domain.Session
	observers []subscription
	nextID    uint64
}

type subscription struct {
	id uint64
	fn Observer
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Establish(value domain.Session) error {
	value = normalize(value)
	if err := validate(value); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	next := value
	s.current = &next
	s.mu.Unlock()

	s.notify(Snapshot{Session: value, Present: true})
	return nil
}

// Clear drops the session. Clearing an absent session does nothing and
// notifies nobody.
func (s *Store) Clear() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()

	s.notify(Snapshot{})
}

func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Session{}, false
	}
	return *s.current, true
}

func (s *Store) Snapshot() Snapshot {
	value, ok := s.Current()
	return Snapshot{Session: value, Present: ok}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.observers {
				if sub.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.RLock()
	observers := make([]subscription, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, sub := range observers {
		sub.fn(snap)
	}
}

func normalize(value domain.Session) domain.Session {
	value.Identity = strings.TrimSpace(value.Identity)
	value.DisplayName = strings.TrimSpace(value.DisplayName)
	value.Email = strings.TrimSpace(value.Email)
	value.DoctorLinkID = strings.TrimSpace(value.DoctorLinkID)
	return value
}

func validate(value domain.Session) error {
	var missing []string
	if value.Identity == "" {
		missing = append(missing, "identity")
	}
	if value.DisplayName == "" {
		missing = append(missing, "display name")
	}
	if value.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", domain.ErrInvalidSessionData, strings.Join(missing, ", "))
	}
	if !value.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidSessionData, value.Role)
	}
	if value.Role == domain.RolePatient && value.DoctorLinkID != "" {
		return fmt.Errorf("%w: doctor link id on a patient session", domain.ErrInvalidSessionData)
	}
	return nil
}
