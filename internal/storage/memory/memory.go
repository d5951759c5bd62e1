package memory

import (
	"github.com/fdg312/nutri-plans/internal/storage"
)

// MemoryStorage — in-memory implementation of storage.Storage, used when
// DATABASE_URL is not set and in tests.
type MemoryStorage struct {
	plans    *plansStorage
	recipes  *recipesStorage
	patients *patientsStorage
}

// New creates an empty MemoryStorage.
func New() *MemoryStorage {
	return &MemoryStorage{
		plans:    newPlansStorage(),
		recipes:  newRecipesStorage(),
		patients: newPatientsStorage(),
	}
}

func (m *MemoryStorage) GetPlansStorage() storage.PlansStorage {
	return m.plans
}

func (m *MemoryStorage) GetRecipesStorage() storage.RecipesStorage {
	return m.recipes
}

func (m *MemoryStorage) GetPatientsStorage() storage.PatientsStorage {
	return m.patients
}

func (m *MemoryStorage) Close() error {
	return nil
}
