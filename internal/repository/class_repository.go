package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/printforge/fulfillment-api/internal/models"
)

const classColumns = `id, order_id, name, is_attended, total_students_to_serve, submitted_students_count, created_at, updated_at`

// ClassRepository manages persistence for class rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListByOrder returns the order's classes in stable order. Name ascending with
// id as tiebreaker keeps the current-pointer selection deterministic across
// concurrent viewers.
func (r *ClassRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE order_id = $1 ORDER BY name ASC, id ASC", classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, orderID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID fetches a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// CountByOrder returns the number of classes under an order.
func (r *ClassRepository) CountByOrder(ctx context.Context, orderID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(id) FROM classes WHERE order_id = $1", orderID); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// Update persists audited class fields.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, is_attended = :is_attended, total_students_to_serve = :total_students_to_serve, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}
