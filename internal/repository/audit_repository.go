package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/printforge/fulfillment-api/internal/models"
)

// ErrReportSealed is returned when a trail-producing mutation reaches a report
// that was sealed after the caller last read it.
var ErrReportSealed = errors.New("audit report sealed")

const reportColumns = `id, order_id, status, discrepancies_found, students_with_discrepancies, total_students_audited, submitted_data, created_at, completed_at`

const trailColumns = `id, report_id, seq, occurred_at, actor_id, actor_name, action, entity_type, entity_id, entity_name, field, old_value, new_value`

// AuditRepository manages audit reports, the append-only trail and per-student
// audit state. Trail appends are serialized per report by locking the report
// row for the duration of the write.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// FindByID fetches a report by ID.
func (r *AuditRepository) FindByID(ctx context.Context, id string) (*models.AuditReport, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_reports WHERE id = $1", reportColumns)
	var report models.AuditReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// FindOpenByOrder returns the order's in-progress report if one exists.
func (r *AuditRepository) FindOpenByOrder(ctx context.Context, orderID string) (*models.AuditReport, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_reports WHERE order_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1", reportColumns)
	var report models.AuditReport
	if err := r.db.GetContext(ctx, &report, query, orderID, models.AuditReportStatusInProgress); err != nil {
		return nil, err
	}
	return &report, nil
}

// Create inserts a new in-progress report. The partial unique index on
// audit_reports(order_id) WHERE status = 'IN_PROGRESS' backs the ON CONFLICT
// clause, so two racing opens collapse into one row; the loser sees false and
// re-reads the winner.
func (r *AuditRepository) Create(ctx context.Context, report *models.AuditReport) (bool, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.Status = models.AuditReportStatusInProgress
	report.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO audit_reports (id, order_id, status, discrepancies_found, students_with_discrepancies, total_students_audited, created_at)
        VALUES (:id, :order_id, :status, :discrepancies_found, :students_with_discrepancies, :total_students_audited, :created_at)
        ON CONFLICT (order_id) WHERE status = 'IN_PROGRESS' DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, report)
	if err != nil {
		return false, fmt.Errorf("create audit report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create audit report: %w", err)
	}
	return affected == 1, nil
}

// WriteSnapshot stores the submitted-data baseline exactly once and records
// the snapshot marker entry in the same transaction. The guard clause makes
// concurrent double-writes collapse into a single winner; callers treat a
// false return as "someone else already wrote it", and only the winner's
// marker lands on the trail.
func (r *AuditRepository) WriteSnapshot(ctx context.Context, reportID string, data []byte, entry models.AuditTrailEntry) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := lockOpenReport(ctx, tx, reportID); err != nil {
		return false, err
	}

	const query = `UPDATE audit_reports SET submitted_data = $1 WHERE id = $2 AND submitted_data IS NULL`
	res, err := tx.ExecContext(ctx, query, data, reportID)
	if err != nil {
		return false, fmt.Errorf("write snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write snapshot: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := appendEntries(ctx, tx, reportID, []models.AuditTrailEntry{entry}); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return true, nil
}

// ListTrail returns the report's trail entries in append order.
func (r *AuditRepository) ListTrail(ctx context.Context, reportID string) ([]models.AuditTrailEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_trail_entries WHERE report_id = $1 ORDER BY seq ASC", trailColumns)
	var entries []models.AuditTrailEntry
	if err := r.db.SelectContext(ctx, &entries, query, reportID); err != nil {
		return nil, fmt.Errorf("list trail: %w", err)
	}
	return entries, nil
}

// AppendTrail appends entries to an open report's trail.
func (r *AuditRepository) AppendTrail(ctx context.Context, reportID string, entries []models.AuditTrailEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trail tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := lockOpenReport(ctx, tx, reportID); err != nil {
		return err
	}
	if err := appendEntries(ctx, tx, reportID, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trail tx: %w", err)
	}
	return nil
}

// ApplyOrderEdit persists audited order totals and the matching trail entries
// as one atomic unit.
func (r *AuditRepository) ApplyOrderEdit(ctx context.Context, reportID string, order *models.Order, entries []models.AuditTrailEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order edit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := lockOpenReport(ctx, tx, reportID); err != nil {
		return err
	}

	const query = `UPDATE orders SET total_students = $1, total_garments = $2, total_dark_garments = $3, total_light_garments = $4, updated_at = $5 WHERE id = $6`
	if _, err := tx.ExecContext(ctx, query,
		order.TotalStudents, order.TotalGarments, order.TotalDarkGarments, order.TotalLightGarments,
		time.Now().UTC(), order.ID); err != nil {
		return fmt.Errorf("update audited order totals: %w", err)
	}

	if err := appendEntries(ctx, tx, reportID, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order edit tx: %w", err)
	}
	return nil
}

// ApplyClassEdit persists audited class fields and the matching trail entries
// as one atomic unit.
func (r *AuditRepository) ApplyClassEdit(ctx context.Context, reportID string, class *models.Class, entries []models.AuditTrailEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin class edit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := lockOpenReport(ctx, tx, reportID); err != nil {
		return err
	}

	const query = `UPDATE classes SET is_attended = $1, total_students_to_serve = $2, updated_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, query, class.IsAttended, class.TotalStudentsToServe, time.Now().UTC(), class.ID); err != nil {
		return fmt.Errorf("update audited class: %w", err)
	}

	if err := appendEntries(ctx, tx, reportID, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit class edit tx: %w", err)
	}
	return nil
}

// ApplyStudentEdit persists an audited student save: collected counts, the
// audited flag, the per-student audit row, report counters and trail entries,
// all in one transaction. Counter increments only fire on transitions: a
// student is counted as audited once, and a discrepancy only when newly
// introduced. The report-level discrepancy flag is sticky by construction
// (boolean OR).
func (r *AuditRepository) ApplyStudentEdit(ctx context.Context, reportID string, student *models.Student, entries []models.AuditTrailEntry, hasDiscrepancy bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student edit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := lockOpenReport(ctx, tx, reportID); err != nil {
		return err
	}

	now := time.Now().UTC()

	const studentQuery = `UPDATE students SET total_light_garment_count = $1, total_dark_garment_count = $2, is_audited = true, updated_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, studentQuery,
		student.TotalLightGarmentCount, student.TotalDarkGarmentCount, now, student.ID); err != nil {
		return fmt.Errorf("update audited student: %w", err)
	}

	var prev models.StudentAudit
	newlyAudited := false
	err = tx.GetContext(ctx, &prev,
		"SELECT report_id, student_id, has_discrepancy, audited_at FROM student_audits WHERE report_id = $1 AND student_id = $2",
		reportID, student.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load student audit: %w", err)
		}
		newlyAudited = true
	}
	newlyDiscrepant := hasDiscrepancy && (newlyAudited || !prev.HasDiscrepancy)

	const upsert = `INSERT INTO student_audits (report_id, student_id, has_discrepancy, audited_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (report_id, student_id)
        DO UPDATE SET has_discrepancy = student_audits.has_discrepancy OR EXCLUDED.has_discrepancy, audited_at = EXCLUDED.audited_at`
	if _, err := tx.ExecContext(ctx, upsert, reportID, student.ID, hasDiscrepancy, now); err != nil {
		return fmt.Errorf("upsert student audit: %w", err)
	}

	auditedInc := 0
	if newlyAudited {
		auditedInc = 1
	}
	discrepantInc := 0
	if newlyDiscrepant {
		discrepantInc = 1
	}
	const counters = `UPDATE audit_reports SET
        total_students_audited = total_students_audited + $1,
        students_with_discrepancies = students_with_discrepancies + $2,
        discrepancies_found = discrepancies_found OR $3
        WHERE id = $4`
	if _, err := tx.ExecContext(ctx, counters, auditedInc, discrepantInc, hasDiscrepancy, reportID); err != nil {
		return fmt.Errorf("update report counters: %w", err)
	}

	if err := appendEntries(ctx, tx, reportID, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student edit tx: %w", err)
	}
	return nil
}

// Seal completes a report. One-way: a report already sealed is left untouched
// and reported as such. The seal action itself is the last trail entry.
func (r *AuditRepository) Seal(ctx context.Context, reportID string, entry models.AuditTrailEntry) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seal tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	report, err := lockReport(ctx, tx, reportID)
	if err != nil {
		return false, err
	}
	if report.Sealed() {
		return false, nil
	}

	if err := appendEntries(ctx, tx, reportID, []models.AuditTrailEntry{entry}); err != nil {
		return false, err
	}

	const query = `UPDATE audit_reports SET status = $1, completed_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, models.AuditReportStatusCompleted, time.Now().UTC(), reportID); err != nil {
		return false, fmt.Errorf("seal report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seal tx: %w", err)
	}
	return true, nil
}

// GetStudentAudit returns the per-student audit state within a report.
func (r *AuditRepository) GetStudentAudit(ctx context.Context, reportID, studentID string) (*models.StudentAudit, error) {
	var sa models.StudentAudit
	err := r.db.GetContext(ctx, &sa,
		"SELECT report_id, student_id, has_discrepancy, audited_at FROM student_audits WHERE report_id = $1 AND student_id = $2",
		reportID, studentID)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func lockReport(ctx context.Context, tx *sqlx.Tx, reportID string) (*models.AuditReport, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_reports WHERE id = $1 FOR UPDATE", reportColumns)
	var report models.AuditReport
	if err := tx.GetContext(ctx, &report, query, reportID); err != nil {
		return nil, fmt.Errorf("lock report: %w", err)
	}
	return &report, nil
}

func lockOpenReport(ctx context.Context, tx *sqlx.Tx, reportID string) (*models.AuditReport, error) {
	report, err := lockReport(ctx, tx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Sealed() {
		return nil, ErrReportSealed
	}
	return report, nil
}

func appendEntries(ctx context.Context, tx *sqlx.Tx, reportID string, entries []models.AuditTrailEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var maxSeq int
	if err := tx.GetContext(ctx, &maxSeq, "SELECT COALESCE(MAX(seq), 0) FROM audit_trail_entries WHERE report_id = $1", reportID); err != nil {
		return fmt.Errorf("read trail seq: %w", err)
	}

	const insert = `INSERT INTO audit_trail_entries (id, report_id, seq, occurred_at, actor_id, actor_name, action, entity_type, entity_id, entity_name, field, old_value, new_value)
        VALUES (:id, :report_id, :seq, :occurred_at, :actor_id, :actor_name, :action, :entity_type, :entity_id, :entity_name, :field, :old_value, :new_value)`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		entries[i].ReportID = reportID
		entries[i].Seq = maxSeq + i + 1
		if entries[i].OccurredAt.IsZero() {
			entries[i].OccurredAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insert, &entries[i]); err != nil {
			return fmt.Errorf("append trail entry: %w", err)
		}
	}
	return nil
}
