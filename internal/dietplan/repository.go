package dietplan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StoredPlan is a persisted weekly plan. Meals holds the serialized plan
// as opaque JSON text.
type StoredPlan struct {
	ID        int64     `json:"id"`
	ClientID  string    `json:"clientId"`
	CreatedBy string    `json:"createdBy"`
	Meals     string    `json:"meals"`
	CreatedAt time.Time `json:"createdAt"`
}

// Plan decodes the stored meals back into a WeeklyMealPlan.
func (p StoredPlan) Plan() (*WeeklyMealPlan, error) {
	var plan WeeklyMealPlan
	if err := json.Unmarshal([]byte(p.Meals), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored plan %d: %w", p.ID, err)
	}
	return &plan, nil
}

// Repository is a database-backed repository for extracted meal plans.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d, now: time.Now}
}

// Save stores a plan for a client on behalf of the acting user.
func (r *Repository) Save(ctx context.Context, clientID, createdBy string, plan *WeeklyMealPlan) (*StoredPlan, error) {
	meals, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	createdAt := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO meal_plans (client_id, created_by, meals, created_at) VALUES (?, ?, ?, ?)`,
		clientID, createdBy, string(meals), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal plan for client %s: %w", clientID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read meal plan id: %w", err)
	}

	return &StoredPlan{
		ID:        id,
		ClientID:  clientID,
		CreatedBy: createdBy,
		Meals:     string(meals),
		CreatedAt: createdAt,
	}, nil
}

// Get retrieves a plan by its ID. It returns nil when no plan exists.
func (r *Repository) Get(ctx context.Context, id int64) (*StoredPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, client_id, created_by, meals, created_at FROM meal_plans WHERE id = ?`, id)

	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meal plan %d: %w", id, err)
	}
	return p, nil
}

// ListByClient returns the plan history of a client, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID string) ([]StoredPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, client_id, created_by, meals, created_at FROM meal_plans
		 WHERE client_id = ? ORDER BY id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans for client %s: %w", clientID, err)
	}
	defer rows.Close()

	plans := []StoredPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (*StoredPlan, error) {
	var (
		p         StoredPlan
		createdAt string
	)
	if err := s.Scan(&p.ID, &p.ClientID, &p.CreatedBy, &p.Meals, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	p.CreatedAt = ts
	return &p, nil
}
