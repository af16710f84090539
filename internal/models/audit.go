package models

import "time"

// AuditReportStatus tracks the report lifecycle.
type AuditReportStatus string

const (
	AuditReportStatusInProgress AuditReportStatus = "IN_PROGRESS"
	AuditReportStatusCompleted  AuditReportStatus = "COMPLETED"
)

// Audit trail entity types.
const (
	AuditEntityOrder   = "order"
	AuditEntityClass   = "class"
	AuditEntityStudent = "student"
)

// Audit trail actions.
const (
	AuditActionFieldUpdate = "FIELD_UPDATE"
	AuditActionSnapshot    = "SNAPSHOT_CREATED"
	AuditActionSeal        = "REPORT_SEALED"
)

// AuditReport is one reconciliation cycle over an order.
type AuditReport struct {
	ID                        string            `db:"id" json:"id"`
	OrderID                   string            `db:"order_id" json:"order_id"`
	Status                    AuditReportStatus `db:"status" json:"status"`
	DiscrepanciesFound        bool              `db:"discrepancies_found" json:"discrepancies_found"`
	StudentsWithDiscrepancies int               `db:"students_with_discrepancies" json:"students_with_discrepancies"`
	TotalStudentsAudited      int               `db:"total_students_audited" json:"total_students_audited"`
	SubmittedData             []byte            `db:"submitted_data" json:"-"`
	CreatedAt                 time.Time         `db:"created_at" json:"created_at"`
	CompletedAt               *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// HasSnapshot reports whether the submitted-data baseline was already frozen.
func (r AuditReport) HasSnapshot() bool {
	return len(r.SubmittedData) > 0
}

// Sealed reports whether the report no longer accepts trail-producing mutations.
func (r AuditReport) Sealed() bool {
	return r.Status == AuditReportStatusCompleted
}

// SubmittedSnapshot is the immutable "as submitted" baseline captured at first
// audit touch. Written once, never rewritten.
type SubmittedSnapshot struct {
	Order    OrderSnapshot     `json:"order"`
	Classes  []ClassSnapshot   `json:"classes"`
	Students []StudentSnapshot `json:"students"`
}

// OrderSnapshot captures order-level submitted totals.
type OrderSnapshot struct {
	TotalStudents      int `json:"total_students"`
	TotalGarments      int `json:"total_garments"`
	TotalDarkGarments  int `json:"total_dark_garments"`
	TotalLightGarments int `json:"total_light_garments"`
	TotalClasses       int `json:"total_classes"`
}

// ClassSnapshot captures a class's submitted roster size.
type ClassSnapshot struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	SubmittedStudentsCount int    `json:"submitted_students_count"`
}

// StudentSnapshot captures a student's submitted garment counts.
type StudentSnapshot struct {
	ID                         string `json:"id"`
	FullName                   string `json:"full_name"`
	ClassID                    string `json:"class_id"`
	SubmittedLightGarmentCount int    `json:"submitted_light_garment_count"`
	SubmittedDarkGarmentCount  int    `json:"submitted_dark_garment_count"`
}

// AuditTrailEntry is one immutable record of a single field change during audit.
type AuditTrailEntry struct {
	ID         string    `db:"id" json:"id"`
	ReportID   string    `db:"report_id" json:"report_id"`
	Seq        int       `db:"seq" json:"seq"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	ActorName  string    `db:"actor_name" json:"actor_name"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	EntityName string    `db:"entity_name" json:"entity_name"`
	Field      string    `db:"field" json:"field"`
	OldValue   string    `db:"old_value" json:"old_value"`
	NewValue   string    `db:"new_value" json:"new_value"`
}

// AuditReportDetail is the full report view handed to the report renderer:
// counters, the frozen baseline and the ordered trail.
type AuditReportDetail struct {
	AuditReport
	Snapshot *SubmittedSnapshot `json:"submitted_data,omitempty"`
	Trail    []AuditTrailEntry  `json:"audit_trail"`
}

// StudentAudit is the per-student audit state within a report. It lets a
// repeated save distinguish a newly introduced discrepancy from a re-save.
type StudentAudit struct {
	ReportID       string    `db:"report_id" json:"report_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	HasDiscrepancy bool      `db:"has_discrepancy" json:"has_discrepancy"`
	AuditedAt      time.Time `db:"audited_at" json:"audited_at"`
}
