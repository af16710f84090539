package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/printforge/fulfillment-api/internal/models"
)

const orderColumns = `id, school_id, school_name, status, scheduled_date, estimated_duration_hours, queued_at,
        total_students, total_garments, total_dark_garments, total_light_garments,
        submitted_total_students, submitted_total_garments, submitted_total_dark_garments, submitted_total_light_garments,
        created_at, updated_at`

// OrderRepository manages persistence for printing orders.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// List returns orders matching the provided filters.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	base := "FROM orders o"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("o.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("o.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(o.school_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"school_name":    "o.school_name",
		"scheduled_date": "o.scheduled_date",
		"created_at":     "o.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "o.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		strings.ReplaceAll(orderColumns, "id,", "o.id,"), base, column, order, size, offset)

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(o.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return orders, total, nil
}

// FindByID fetches an order by ID.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1", orderColumns)
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus applies a guarded status transition. The WHERE clause re-checks
// the source status at commit time so stale transitions update zero rows.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	const query = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`
	res, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return affected == 1, nil
}

// Queue atomically moves an order to QUEUED together with its scheduling
// metadata and the queued_at stamp. queued_at is only ever written here.
func (r *OrderRepository) Queue(ctx context.Context, id string, from []models.OrderStatus, scheduledDate time.Time, estimatedHours float64) (bool, error) {
	const query = `UPDATE orders
        SET status = $1, scheduled_date = $2, estimated_duration_hours = $3, queued_at = $4, updated_at = $4
        WHERE id = $5 AND status = ANY($6)`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, models.OrderStatusQueued, scheduledDate, estimatedHours, now, id, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("queue order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue order: %w", err)
	}
	return affected == 1, nil
}

// CreateWithRoster inserts the order with all its classes and students as one
// unit of work. A failed insert rolls the whole roster back so aggregation
// never observes a partially created order.
func (r *OrderRepository) CreateWithRoster(ctx context.Context, order *models.Order, classes []models.Class, students []models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	const orderInsert = `INSERT INTO orders (id, school_id, school_name, status,
        total_students, total_garments, total_dark_garments, total_light_garments,
        submitted_total_students, submitted_total_garments, submitted_total_dark_garments, submitted_total_light_garments,
        created_at, updated_at)
        VALUES (:id, :school_id, :school_name, :status,
        :total_students, :total_garments, :total_dark_garments, :total_light_garments,
        :submitted_total_students, :submitted_total_garments, :submitted_total_dark_garments, :submitted_total_light_garments,
        :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, orderInsert, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const classInsert = `INSERT INTO classes (id, order_id, name, is_attended, total_students_to_serve, submitted_students_count, created_at, updated_at)
        VALUES (:id, :order_id, :name, :is_attended, :total_students_to_serve, :submitted_students_count, :created_at, :updated_at)`
	for i := range classes {
		classes[i].OrderID = order.ID
		classes[i].CreatedAt = now
		classes[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, classInsert, &classes[i]); err != nil {
			return fmt.Errorf("insert class %s: %w", classes[i].Name, err)
		}
	}

	const studentInsert = `INSERT INTO students (id, order_id, class_id, full_name,
        total_light_garment_count, total_dark_garment_count,
        submitted_light_garment_count, submitted_dark_garment_count,
        printed_light_garment_count, printed_dark_garment_count,
        light_garments_printed, dark_garments_printed, is_served, is_audited,
        created_at, updated_at)
        VALUES (:id, :order_id, :class_id, :full_name,
        :total_light_garment_count, :total_dark_garment_count,
        :submitted_light_garment_count, :submitted_dark_garment_count,
        :printed_light_garment_count, :printed_dark_garment_count,
        :light_garments_printed, :dark_garments_printed, :is_served, :is_audited,
        :created_at, :updated_at)`
	for i := range students {
		students[i].OrderID = order.ID
		students[i].CreatedAt = now
		students[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, studentInsert, &students[i]); err != nil {
			return fmt.Errorf("insert student %s: %w", students[i].FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
