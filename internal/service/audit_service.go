package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/printforge/fulfillment-api/internal/models"
	"github.com/printforge/fulfillment-api/internal/repository"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
)

type auditReportRepository interface {
	FindByID(ctx context.Context, id string) (*models.AuditReport, error)
	FindOpenByOrder(ctx context.Context, orderID string) (*models.AuditReport, error)
	Create(ctx context.Context, report *models.AuditReport) (bool, error)
	WriteSnapshot(ctx context.Context, reportID string, data []byte, entry models.AuditTrailEntry) (bool, error)
	ListTrail(ctx context.Context, reportID string) ([]models.AuditTrailEntry, error)
	ApplyOrderEdit(ctx context.Context, reportID string, order *models.Order, entries []models.AuditTrailEntry) error
	ApplyClassEdit(ctx context.Context, reportID string, class *models.Class, entries []models.AuditTrailEntry) error
	ApplyStudentEdit(ctx context.Context, reportID string, student *models.Student, entries []models.AuditTrailEntry, hasDiscrepancy bool) error
	Seal(ctx context.Context, reportID string, entry models.AuditTrailEntry) (bool, error)
}

type auditOrderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
}

type auditClassRepository interface {
	ListByOrder(ctx context.Context, orderID string) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type auditStudentRepository interface {
	ListByOrder(ctx context.Context, orderID string) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EditOrderTotalsRequest carries audited order totals.
type EditOrderTotalsRequest struct {
	TotalStudents      int `json:"total_students" validate:"min=0"`
	TotalGarments      int `json:"total_garments" validate:"min=0"`
	TotalDarkGarments  int `json:"total_dark_garments" validate:"min=0"`
	TotalLightGarments int `json:"total_light_garments" validate:"min=0"`
}

// EditClassRequest carries audited class fields.
type EditClassRequest struct {
	TotalStudentsToServe int   `json:"total_students_to_serve" validate:"min=0"`
	IsAttended           *bool `json:"is_attended,omitempty"`
}

// SaveStudentAuditRequest carries the collected garment counts for a student.
type SaveStudentAuditRequest struct {
	TotalLightGarmentCount int `json:"total_light_garment_count" validate:"min=0"`
	TotalDarkGarmentCount  int `json:"total_dark_garment_count" validate:"min=0"`
}

// AuditService owns the snapshot, trail and discrepancy bookkeeping. Every
// audit-context write diffs old against new and appends trail entries
// atomically with the mutation; no-op edits leave no trace.
type AuditService struct {
	reports   auditReportRepository
	orders    auditOrderRepository
	classes   auditClassRepository
	students  auditStudentRepository
	notifier  changePublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(reports auditReportRepository, orders auditOrderRepository, classes auditClassRepository, students auditStudentRepository, notifier changePublisher, validate *validator.Validate, logger *zap.Logger) *AuditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{reports: reports, orders: orders, classes: classes, students: students, notifier: notifier, validator: validate, logger: logger}
}

// Open returns the order's in-progress report, creating one on first access,
// and freezes the submitted-data snapshot if not yet present. Safe to call
// repeatedly: the snapshot guard makes double-writes a no-op.
func (s *AuditService) Open(ctx context.Context, orderID string, actor models.Actor) (*models.AuditReport, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	report, err := s.reports.FindOpenByOrder(ctx, orderID)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit report")
		}
		report = &models.AuditReport{OrderID: orderID}
		created, err := s.reports.Create(ctx, report)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create audit report")
		}
		if !created {
			// A concurrent open won the insert; adopt the winner's report so
			// the order never carries two in-progress trails.
			report, err = s.reports.FindOpenByOrder(ctx, orderID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit report")
			}
		}
	}

	if !report.HasSnapshot() {
		if err := s.freezeSnapshot(ctx, report, order, actor); err != nil {
			return nil, err
		}
		report, err = s.reports.FindByID(ctx, report.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload audit report")
		}
	}
	return report, nil
}

// Report assembles the full snapshot+trail view for the report renderer.
func (s *AuditService) Report(ctx context.Context, reportID string) (*models.AuditReportDetail, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit report")
	}

	detail := &models.AuditReportDetail{AuditReport: *report}
	if report.HasSnapshot() {
		var snapshot models.SubmittedSnapshot
		if err := json.Unmarshal(report.SubmittedData, &snapshot); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode snapshot")
		}
		detail.Snapshot = &snapshot
	}

	trail, err := s.reports.ListTrail(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	detail.Trail = trail
	return detail, nil
}

// EditOrderTotals applies an audited edit to the order's totals.
func (s *AuditService) EditOrderTotals(ctx context.Context, reportID string, req EditOrderTotalsRequest, actor models.Actor) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid totals payload")
	}
	if req.TotalGarments != req.TotalDarkGarments+req.TotalLightGarments {
		return nil, appErrors.Clone(appErrors.ErrValidation, "total_garments must equal dark plus light garments")
	}

	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, report.OrderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	var entries []models.AuditTrailEntry
	appendDiff := func(field string, oldVal, newVal int) {
		if oldVal != newVal {
			entries = append(entries, s.entry(actor, models.AuditEntityOrder, order.ID, order.SchoolName, field, strconv.Itoa(oldVal), strconv.Itoa(newVal)))
		}
	}
	appendDiff("total_students", order.TotalStudents, req.TotalStudents)
	appendDiff("total_garments", order.TotalGarments, req.TotalGarments)
	appendDiff("total_dark_garments", order.TotalDarkGarments, req.TotalDarkGarments)
	appendDiff("total_light_garments", order.TotalLightGarments, req.TotalLightGarments)

	if len(entries) == 0 {
		return order, nil
	}

	order.TotalStudents = req.TotalStudents
	order.TotalGarments = req.TotalGarments
	order.TotalDarkGarments = req.TotalDarkGarments
	order.TotalLightGarments = req.TotalLightGarments

	if err := s.reports.ApplyOrderEdit(ctx, reportID, order, entries); err != nil {
		return nil, s.mapSealed(err, "failed to apply order edit")
	}

	s.notifier.Publish(models.ChangeEvent{OrderID: order.ID, Table: models.ChangeTableOrder, EntityID: order.ID, Action: "audit"})
	return order, nil
}

// EditClass applies an audited edit to a class's roster fields.
func (s *AuditService) EditClass(ctx context.Context, reportID, classID string, req EditClassRequest, actor models.Actor) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.OrderID != report.OrderID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found in audited order")
	}

	var entries []models.AuditTrailEntry
	if class.TotalStudentsToServe != req.TotalStudentsToServe {
		entries = append(entries, s.entry(actor, models.AuditEntityClass, class.ID, class.Name,
			"total_students_to_serve", strconv.Itoa(class.TotalStudentsToServe), strconv.Itoa(req.TotalStudentsToServe)))
		class.TotalStudentsToServe = req.TotalStudentsToServe
	}
	if req.IsAttended != nil && class.IsAttended != *req.IsAttended {
		entries = append(entries, s.entry(actor, models.AuditEntityClass, class.ID, class.Name,
			"is_attended", strconv.FormatBool(class.IsAttended), strconv.FormatBool(*req.IsAttended)))
		class.IsAttended = *req.IsAttended
	}

	if len(entries) == 0 {
		return class, nil
	}

	if err := s.reports.ApplyClassEdit(ctx, reportID, class, entries); err != nil {
		return nil, s.mapSealed(err, "failed to apply class edit")
	}

	s.notifier.Publish(models.ChangeEvent{OrderID: report.OrderID, Table: models.ChangeTableClass, EntityID: class.ID, Action: "audit"})
	return class, nil
}

// SaveStudentAudit records a student's collected counts against the frozen
// baseline. A discrepancy is any mismatch between snapshot and collected
// counts at save time; the report flag is sticky and counters only move on
// first audit / newly introduced discrepancy.
func (s *AuditService) SaveStudentAudit(ctx context.Context, reportID, studentID string, req SaveStudentAuditRequest, actor models.Actor) (*models.AuditReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student audit payload")
	}

	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.HasSnapshot() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "audit snapshot has not been created")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.OrderID != report.OrderID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in audited order")
	}

	var snapshot models.SubmittedSnapshot
	if err := json.Unmarshal(report.SubmittedData, &snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode snapshot")
	}
	baselineLight, baselineDark := baselineCounts(&snapshot, student)

	var entries []models.AuditTrailEntry
	if student.TotalLightGarmentCount != req.TotalLightGarmentCount {
		entries = append(entries, s.entry(actor, models.AuditEntityStudent, student.ID, student.FullName,
			"total_light_garment_count", strconv.Itoa(student.TotalLightGarmentCount), strconv.Itoa(req.TotalLightGarmentCount)))
	}
	if student.TotalDarkGarmentCount != req.TotalDarkGarmentCount {
		entries = append(entries, s.entry(actor, models.AuditEntityStudent, student.ID, student.FullName,
			"total_dark_garment_count", strconv.Itoa(student.TotalDarkGarmentCount), strconv.Itoa(req.TotalDarkGarmentCount)))
	}

	student.TotalLightGarmentCount = req.TotalLightGarmentCount
	student.TotalDarkGarmentCount = req.TotalDarkGarmentCount
	hasDiscrepancy := req.TotalLightGarmentCount != baselineLight || req.TotalDarkGarmentCount != baselineDark

	if err := s.reports.ApplyStudentEdit(ctx, reportID, student, entries, hasDiscrepancy); err != nil {
		return nil, s.mapSealed(err, "failed to save student audit")
	}

	s.notifier.Publish(models.ChangeEvent{OrderID: report.OrderID, Table: models.ChangeTableStudent, EntityID: student.ID, Action: "audit"})

	updated, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload audit report")
	}
	return updated, nil
}

// Seal completes the report. One-way: sealing an already sealed report is a
// no-op success, and all further trail-producing mutations are rejected.
func (s *AuditService) Seal(ctx context.Context, reportID string, actor models.Actor) (*models.AuditReport, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit report")
	}
	if report.Sealed() {
		return report, nil
	}

	entry := s.entry(actor, models.AuditEntityOrder, report.OrderID, "",
		"status", string(models.AuditReportStatusInProgress), string(models.AuditReportStatusCompleted))
	entry.Action = models.AuditActionSeal

	if _, err := s.reports.Seal(ctx, reportID, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal audit report")
	}

	s.logger.Info("audit_report_sealed", zap.String("report_id", reportID), zap.String("actor_id", actor.ID))
	s.notifier.Publish(models.ChangeEvent{OrderID: report.OrderID, Table: models.ChangeTableOrder, EntityID: report.OrderID, Action: "audit_sealed"})

	updated, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload audit report")
	}
	return updated, nil
}

func (s *AuditService) freezeSnapshot(ctx context.Context, report *models.AuditReport, order *models.Order, actor models.Actor) error {
	classes, err := s.classes.ListByOrder(ctx, order.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	students, err := s.students.ListByOrder(ctx, order.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	snapshot := BuildSnapshot(order, classes, students)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot")
	}

	entry := s.entry(actor, models.AuditEntityOrder, order.ID, order.SchoolName, "", "", "")
	entry.Action = models.AuditActionSnapshot

	// The snapshot and its marker entry commit together; a lost race means a
	// concurrent auditor's snapshot and marker stand.
	if _, err := s.reports.WriteSnapshot(ctx, report.ID, data, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write snapshot")
	}
	return nil
}

func (s *AuditService) openReport(ctx context.Context, reportID string) (*models.AuditReport, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit report")
	}
	if report.Sealed() {
		return nil, appErrors.Clone(appErrors.ErrSealedReport, "audit report "+reportID+" is sealed")
	}
	return report, nil
}

func (s *AuditService) entry(actor models.Actor, entityType, entityID, entityName, field, oldValue, newValue string) models.AuditTrailEntry {
	return models.AuditTrailEntry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     models.AuditActionFieldUpdate,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
}

func (s *AuditService) mapSealed(err error, message string) error {
	if errors.Is(err, repository.ErrReportSealed) {
		return appErrors.Clone(appErrors.ErrSealedReport, "audit report is sealed")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// BuildSnapshot captures the "as submitted" baseline, preferring submitted_*
// mirrors and falling back to current fields when a mirror was never set.
func BuildSnapshot(order *models.Order, classes []models.Class, students []models.Student) models.SubmittedSnapshot {
	snapshot := models.SubmittedSnapshot{
		Order: models.OrderSnapshot{
			TotalStudents:      intOr(order.SubmittedTotalStudents, order.TotalStudents),
			TotalGarments:      intOr(order.SubmittedTotalGarments, order.TotalGarments),
			TotalDarkGarments:  intOr(order.SubmittedDarkGarments, order.TotalDarkGarments),
			TotalLightGarments: intOr(order.SubmittedLightGarments, order.TotalLightGarments),
			TotalClasses:       len(classes),
		},
		Classes:  make([]models.ClassSnapshot, 0, len(classes)),
		Students: make([]models.StudentSnapshot, 0, len(students)),
	}
	for _, class := range classes {
		snapshot.Classes = append(snapshot.Classes, models.ClassSnapshot{
			ID:                     class.ID,
			Name:                   class.Name,
			SubmittedStudentsCount: intOr(class.SubmittedStudentsCount, class.TotalStudentsToServe),
		})
	}
	for _, student := range students {
		snapshot.Students = append(snapshot.Students, models.StudentSnapshot{
			ID:                         student.ID,
			FullName:                   student.FullName,
			ClassID:                    student.ClassID,
			SubmittedLightGarmentCount: intOr(student.SubmittedLightGarmentCount, student.TotalLightGarmentCount),
			SubmittedDarkGarmentCount:  intOr(student.SubmittedDarkGarmentCount, student.TotalDarkGarmentCount),
		})
	}
	return snapshot
}

func baselineCounts(snapshot *models.SubmittedSnapshot, student *models.Student) (int, int) {
	for _, ss := range snapshot.Students {
		if ss.ID == student.ID {
			return ss.SubmittedLightGarmentCount, ss.SubmittedDarkGarmentCount
		}
	}
	// Student absent from the snapshot (added after the baseline froze); fall
	// back to its own submitted mirrors.
	return intOr(student.SubmittedLightGarmentCount, student.TotalLightGarmentCount),
		intOr(student.SubmittedDarkGarmentCount, student.TotalDarkGarmentCount)
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
