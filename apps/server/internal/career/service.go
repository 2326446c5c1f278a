// Package career keeps per-account win records and the titles they unlock.
package career

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"asylum-lite/apps/server/internal/store"
	"asylum-lite/asylum"
)

type Service interface {
	Close() error
	GetRecord(ctx context.Context, accountID uint64) (*Record, error)
	RecordResult(ctx context.Context, accountID uint64, role asylum.Role, won bool) (*Record, error)
}

type Record struct {
	AccountID    uint64    `json:"account_id"`
	Games        int       `json:"games"`
	DoctorGames  int       `json:"doctor_games"`
	DoctorWins   int       `json:"doctor_wins"`
	PatientGames int       `json:"patient_games"`
	PatientWins  int       `json:"patient_wins"`
	Titles       []string  `json:"titles"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type title struct {
	key     string
	reached func(r *Record) bool
}

// 称号只增不减
var titles = []title{
	{"first_shift", func(r *Record) bool { return r.DoctorGames >= 1 }},
	{"chief_physician", func(r *Record) bool { return r.DoctorWins >= 3 }},
	{"survivor", func(r *Record) bool { return r.PatientWins >= 1 }},
	{"escape_artist", func(r *Record) bool { return r.PatientWins >= 5 }},
	{"regular", func(r *Record) bool { return r.Games >= 10 }},
}

// NewService returns the SQL-backed service when db is set, the in-memory one otherwise.
func NewService(db *store.DB) (Service, string, error) {
	if db == nil {
		return &memoryService{store: make(map[uint64]*Record)}, "memory", nil
	}
	svc, err := NewSQLService(db)
	if err != nil {
		return nil, "", err
	}
	return svc, string(db.Dialect), nil
}

// apply folds one finished session into r.
func apply(r *Record, role asylum.Role, won bool) {
	r.Games++
	switch role {
	case asylum.RoleDoctor:
		r.DoctorGames++
		if won {
			r.DoctorWins++
		}
	case asylum.RolePatient:
		r.PatientGames++
		if won {
			r.PatientWins++
		}
	}
	var unlocked []string
	for _, t := range titles {
		if t.reached(r) {
			unlocked = append(unlocked, t.key)
		}
	}
	r.Titles = mergeUniqueStrings(r.Titles, unlocked)
	r.UpdatedAt = time.Now().UTC()
}

func emptyRecord(accountID uint64) *Record {
	return &Record{AccountID: accountID, Titles: []string{}, UpdatedAt: time.Now().UTC()}
}

func cloneRecord(r *Record) *Record {
	cp := *r
	cp.Titles = append([]string{}, r.Titles...)
	return &cp
}

type memoryService struct {
	mu    sync.RWMutex
	store map[uint64]*Record
}

func (s *memoryService) Close() error { return nil }

func (s *memoryService) GetRecord(_ context.Context, accountID uint64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.store[accountID]; r != nil {
		return cloneRecord(r), nil
	}
	return emptyRecord(accountID), nil
}

func (s *memoryService) RecordResult(_ context.Context, accountID uint64, role asylum.Role, won bool) (*Record, error) {
	if accountID == 0 {
		return nil, fmt.Errorf("invalid account id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.store[accountID]
	if r == nil {
		r = emptyRecord(accountID)
		s.store[accountID] = r
	}
	apply(r, role, won)
	return cloneRecord(r), nil
}

func mergeUniqueStrings(base []string, extras []string) []string {
	set := make(map[string]struct{}, len(base)+len(extras))
	out := make([]string, 0, len(base)+len(extras))
	for _, item := range append(append([]string{}, base...), extras...) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := set[item]; ok {
			continue
		}
		set[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
