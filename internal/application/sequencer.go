package application

import (
	"sync"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

// Sequencer numbers prediction submissions per browser session so that only
// the most recently started one is allowed to become the shown result.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
	result map[string]PredictionOutcome
}

func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64), result: make(map[string]PredictionOutcome)}
}

func (s *Sequencer) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[key]++
	return s.latest[key]
}

// Complete records outcome as the shown result if seq is still the latest
// submission for key, and reports whether it was.
func (s *Sequencer) Complete(key string, seq uint64, outcome PredictionOutcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[key] != seq {
		return false
	}
	s.result[key] = outcome
	return true
}

// IsLatest reports whether seq is still the newest submission for key.
func (s *Sequencer) IsLatest(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[key] == seq
}

func (s *Sequencer) Result(key string) (PredictionOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.result[key]
	return out, ok
}

func (s *Sequencer) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, key)
	delete(s.result, key)
}

type PredictionOutcome struct {
	SubmissionID string            `json:"submission_id"`
	Sequence     uint64            `json:"sequence"`
	Record       domain.RiskRecord `json:"record"`
}
