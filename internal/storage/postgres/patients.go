package postgres

import (
	"context"
	"fmt"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

type patientsStorage struct {
	pool *pgxpool.Pool
}

func newPatientsStorage(pool *pgxpool.Pool) *patientsStorage {
	return &patientsStorage{pool: pool}
}

func (s *patientsStorage) GetPatient(ctx context.Context, id string) (storage.Patient, error) {
	query := `
		SELECT id, user_id, nutritionist_id, name, created_at
		FROM patients
		WHERE id = $1
	`

	var p storage.Patient
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.NutritionistID,
		&p.Name,
		&p.CreatedAt,
	)
	if err != nil {
		return storage.Patient{}, notFound(err)
	}
	return p, nil
}

func (s *patientsStorage) UpsertPatient(ctx context.Context, p storage.Patient) (storage.Patient, error) {
	query := `
		INSERT INTO patients (id, user_id, nutritionist_id, name)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			nutritionist_id = EXCLUDED.nutritionist_id,
			name = EXCLUDED.name
		RETURNING id, user_id, nutritionist_id, name, created_at
	`

	var saved storage.Patient
	err := s.pool.QueryRow(ctx, query, p.ID, p.UserID, p.NutritionistID, p.Name).Scan(
		&saved.ID,
		&saved.UserID,
		&saved.NutritionistID,
		&saved.Name,
		&saved.CreatedAt,
	)
	if err != nil {
		return storage.Patient{}, fmt.Errorf("failed to upsert patient: %w", err)
	}
	return saved, nil
}
