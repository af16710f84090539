package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/printforge/fulfillment-api/internal/models"
)

const studentColumns = `id, order_id, class_id, full_name,
        total_light_garment_count, total_dark_garment_count,
        submitted_light_garment_count, submitted_dark_garment_count,
        printed_light_garment_count, printed_dark_garment_count,
        light_garments_printed, dark_garments_printed, is_served, is_audited,
        printing_done_at, created_at, updated_at`

// StudentRepository manages persistence for student garment records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByOrder returns all students of an order in stable (name, id) order.
func (r *StudentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE order_id = $1 ORDER BY full_name ASC, id ASC", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, orderID); err != nil {
		return nil, fmt.Errorf("list students by order: %w", err)
	}
	return students, nil
}

// ListByClass returns a class's students in stable (name, id) order.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE class_id = $1 ORDER BY full_name ASC, id ASC", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdatePrinting persists the fulfillment-side progress fields.
func (r *StudentRepository) UpdatePrinting(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET
        printed_light_garment_count = :printed_light_garment_count,
        printed_dark_garment_count = :printed_dark_garment_count,
        light_garments_printed = :light_garments_printed,
        dark_garments_printed = :dark_garments_printed,
        is_served = :is_served,
        printing_done_at = :printing_done_at,
        updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student printing: %w", err)
	}
	return nil
}
