package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/google/uuid"
)

type patientsStorage struct {
	mu       sync.RWMutex
	patients map[string]storage.Patient // key: patient_id
}

func newPatientsStorage() *patientsStorage {
	return &patientsStorage{patients: make(map[string]storage.Patient)}
}

func (s *patientsStorage) GetPatient(ctx context.Context, id string) (storage.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return storage.Patient{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *patientsStorage) UpsertPatient(ctx context.Context, p storage.Patient) (storage.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if existing, ok := s.patients[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.patients[p.ID] = p
	return p, nil
}
