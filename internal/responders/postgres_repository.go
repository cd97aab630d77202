package responders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores responders in the relational database. The
// caseload cap is enforced by a guarded UPDATE so concurrent assignments
// cannot overbook a responder.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("responders: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const professionalColumns = `id, name, specialties, languages, region, timezone, schedule,
	current_cases, max_cases, rating, crisis_rating, emergency_contact, status, availability, phone, email`

// GetByID fetches a responder.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Professional, error) {
	query := fmt.Sprintf(`SELECT %s FROM professionals WHERE id = $1`, professionalColumns)
	p, err := scanProfessional(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("responders: select failed: %w", err)
	}
	return p, nil
}

// ListActive returns all active responders in registration order.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Professional, error) {
	query := fmt.Sprintf(`SELECT %s FROM professionals WHERE status = 'active' ORDER BY created_at`, professionalColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("responders: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("responders: scan failed: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("responders: iterate failed: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a responder record.
func (r *PostgresRepository) Upsert(ctx context.Context, p *Professional) error {
	schedule, err := json.Marshal(p.Schedule)
	if err != nil {
		return fmt.Errorf("responders: marshal schedule: %w", err)
	}
	query := `
		INSERT INTO professionals (id, name, specialties, languages, region, timezone, schedule,
			current_cases, max_cases, rating, crisis_rating, emergency_contact, status, availability, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			specialties = EXCLUDED.specialties,
			languages = EXCLUDED.languages,
			region = EXCLUDED.region,
			timezone = EXCLUDED.timezone,
			schedule = EXCLUDED.schedule,
			max_cases = EXCLUDED.max_cases,
			rating = EXCLUDED.rating,
			crisis_rating = EXCLUDED.crisis_rating,
			emergency_contact = EXCLUDED.emergency_contact,
			status = EXCLUDED.status,
			availability = EXCLUDED.availability,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email
	`
	if _, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Specialties, p.Languages, p.Region, p.Timezone, schedule,
		p.CurrentCases, p.MaxCases, p.Rating, p.CrisisRating, p.EmergencyContact,
		p.Status, p.Availability, p.Phone, p.Email,
	); err != nil {
		return fmt.Errorf("responders: upsert failed: %w", err)
	}
	return nil
}

// Assign increments the caseload only while below the cap. The WHERE guard
// makes the increment atomic under concurrent assignment.
func (r *PostgresRepository) Assign(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE professionals SET current_cases = current_cases + 1 WHERE id = $1 AND current_cases < max_cases`, id)
	if err != nil {
		return fmt.Errorf("responders: assign failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAtCapacity
	}
	return nil
}

// Release decrements the caseload at session end, never below zero.
func (r *PostgresRepository) Release(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE professionals SET current_cases = current_cases - 1 WHERE id = $1 AND current_cases > 0`, id)
	if err != nil {
		return fmt.Errorf("responders: release failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAvailability sets the responder's self-reported availability.
func (r *PostgresRepository) UpdateAvailability(ctx context.Context, id string, availability Availability) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE professionals SET availability = $2 WHERE id = $1`, id, availability)
	if err != nil {
		return fmt.Errorf("responders: update availability failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfessional(row rowScanner) (*Professional, error) {
	var (
		p        Professional
		schedule []byte
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Specialties, &p.Languages, &p.Region, &p.Timezone, &schedule,
		&p.CurrentCases, &p.MaxCases, &p.Rating, &p.CrisisRating, &p.EmergencyContact,
		&p.Status, &p.Availability, &p.Phone, &p.Email,
	); err != nil {
		return nil, err
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &p.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule: %w", err)
		}
	}
	return &p, nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
