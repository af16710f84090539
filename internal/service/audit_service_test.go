package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/fulfillment-api/internal/models"
	"github.com/printforge/fulfillment-api/internal/repository"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
)

type mockAuditRepo struct {
	reports       map[string]models.AuditReport
	trail         map[string][]models.AuditTrailEntry
	studentAudits map[string]models.StudentAudit
	savedOrders   map[string]models.Order
	savedClasses  map[string]models.Class
	savedStudents map[string]models.Student

	// openMisses forces FindOpenByOrder to report no rows for that many calls,
	// simulating a reader racing ahead of a concurrent insert.
	openMisses int
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{
		reports:       map[string]models.AuditReport{},
		trail:         map[string][]models.AuditTrailEntry{},
		studentAudits: map[string]models.StudentAudit{},
		savedOrders:   map[string]models.Order{},
		savedClasses:  map[string]models.Class{},
		savedStudents: map[string]models.Student{},
	}
}

func (m *mockAuditRepo) FindByID(ctx context.Context, id string) (*models.AuditReport, error) {
	if r, ok := m.reports[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuditRepo) FindOpenByOrder(ctx context.Context, orderID string) (*models.AuditReport, error) {
	if m.openMisses > 0 {
		m.openMisses--
		return nil, sql.ErrNoRows
	}
	for _, r := range m.reports {
		if r.OrderID == orderID && r.Status == models.AuditReportStatusInProgress {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuditRepo) Create(ctx context.Context, report *models.AuditReport) (bool, error) {
	for _, r := range m.reports {
		if r.OrderID == report.OrderID && r.Status == models.AuditReportStatusInProgress {
			return false, nil
		}
	}
	if report.ID == "" {
		report.ID = fmt.Sprintf("rep-%d", len(m.reports)+1)
	}
	report.Status = models.AuditReportStatusInProgress
	report.CreatedAt = time.Now().UTC()
	m.reports[report.ID] = *report
	return true, nil
}

func (m *mockAuditRepo) WriteSnapshot(ctx context.Context, reportID string, data []byte, entry models.AuditTrailEntry) (bool, error) {
	if err := m.guardOpen(reportID); err != nil {
		return false, err
	}
	r := m.reports[reportID]
	if r.HasSnapshot() {
		return false, nil
	}
	r.SubmittedData = data
	m.reports[reportID] = r
	return true, m.AppendTrail(ctx, reportID, []models.AuditTrailEntry{entry})
}

func (m *mockAuditRepo) ListTrail(ctx context.Context, reportID string) ([]models.AuditTrailEntry, error) {
	return m.trail[reportID], nil
}

func (m *mockAuditRepo) AppendTrail(ctx context.Context, reportID string, entries []models.AuditTrailEntry) error {
	for _, e := range entries {
		e.ReportID = reportID
		e.Seq = len(m.trail[reportID]) + 1
		e.OccurredAt = time.Now().UTC()
		m.trail[reportID] = append(m.trail[reportID], e)
	}
	return nil
}

func (m *mockAuditRepo) guardOpen(reportID string) error {
	r, ok := m.reports[reportID]
	if !ok {
		return sql.ErrNoRows
	}
	if r.Sealed() {
		return repository.ErrReportSealed
	}
	return nil
}

func (m *mockAuditRepo) ApplyOrderEdit(ctx context.Context, reportID string, order *models.Order, entries []models.AuditTrailEntry) error {
	if err := m.guardOpen(reportID); err != nil {
		return err
	}
	m.savedOrders[order.ID] = *order
	return m.AppendTrail(ctx, reportID, entries)
}

func (m *mockAuditRepo) ApplyClassEdit(ctx context.Context, reportID string, class *models.Class, entries []models.AuditTrailEntry) error {
	if err := m.guardOpen(reportID); err != nil {
		return err
	}
	m.savedClasses[class.ID] = *class
	return m.AppendTrail(ctx, reportID, entries)
}

func (m *mockAuditRepo) ApplyStudentEdit(ctx context.Context, reportID string, student *models.Student, entries []models.AuditTrailEntry, hasDiscrepancy bool) error {
	if err := m.guardOpen(reportID); err != nil {
		return err
	}
	student.IsAudited = true
	m.savedStudents[student.ID] = *student

	r := m.reports[reportID]
	key := reportID + "/" + student.ID
	prev, seen := m.studentAudits[key]
	if !seen {
		r.TotalStudentsAudited++
	}
	if hasDiscrepancy && (!seen || !prev.HasDiscrepancy) {
		r.StudentsWithDiscrepancies++
	}
	r.DiscrepanciesFound = r.DiscrepanciesFound || hasDiscrepancy
	m.reports[reportID] = r

	sticky := hasDiscrepancy
	if seen {
		sticky = sticky || prev.HasDiscrepancy
	}
	m.studentAudits[key] = models.StudentAudit{
		ReportID: reportID, StudentID: student.ID,
		HasDiscrepancy: sticky, AuditedAt: time.Now().UTC(),
	}
	return m.AppendTrail(ctx, reportID, entries)
}

func (m *mockAuditRepo) Seal(ctx context.Context, reportID string, entry models.AuditTrailEntry) (bool, error) {
	r, ok := m.reports[reportID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if r.Sealed() {
		return false, nil
	}
	if err := m.AppendTrail(ctx, reportID, []models.AuditTrailEntry{entry}); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	r.Status = models.AuditReportStatusCompleted
	r.CompletedAt = &now
	m.reports[reportID] = r
	return true, nil
}

func auditFixture() (*AuditService, *mockAuditRepo, *mockOrderRepo, *mockClassRepo, *mockStudentRepo, *mockNotifier) {
	reports := newMockAuditRepo()
	orders := &mockOrderRepo{orders: map[string]models.Order{
		"ord-1": {
			ID: "ord-1", SchoolID: "sch-1", SchoolName: "SMA 4",
			Status:        models.OrderStatusOngoing,
			TotalStudents: 2, TotalGarments: 8,
			TotalDarkGarments: 3, TotalLightGarments: 5,
		},
	}}
	classes := &mockClassRepo{
		classes: map[string]models.Class{
			"cls-1": {ID: "cls-1", OrderID: "ord-1", Name: "1A", IsAttended: true, TotalStudentsToServe: 2},
		},
		ordered: []models.Class{
			{ID: "cls-1", OrderID: "ord-1", Name: "1A", IsAttended: true, TotalStudentsToServe: 2},
		},
	}
	students := &mockStudentRepo{students: map[string]models.Student{
		"stu-1": {
			ID: "stu-1", OrderID: "ord-1", ClassID: "cls-1", FullName: "Alda",
			TotalLightGarmentCount: 3, TotalDarkGarmentCount: 2,
		},
		"stu-2": {
			ID: "stu-2", OrderID: "ord-1", ClassID: "cls-1", FullName: "Bram",
			TotalLightGarmentCount: 2, TotalDarkGarmentCount: 1,
		},
	}}
	notifier := &mockNotifier{}
	svc := NewAuditService(reports, orders, classes, students, notifier, nil, nil)
	return svc, reports, orders, classes, students, notifier
}

func TestOpenCreatesReportAndSnapshot(t *testing.T) {
	svc, reports, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1", Name: "Auditor"}

	report, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)
	assert.Equal(t, models.AuditReportStatusInProgress, report.Status)
	require.True(t, report.HasSnapshot())

	var snapshot models.SubmittedSnapshot
	require.NoError(t, json.Unmarshal(report.SubmittedData, &snapshot))
	assert.Equal(t, 2, snapshot.Order.TotalStudents)
	assert.Equal(t, 8, snapshot.Order.TotalGarments)
	assert.Equal(t, 1, snapshot.Order.TotalClasses)
	require.Len(t, snapshot.Students, 2)

	trail := reports.trail[report.ID]
	require.Len(t, trail, 1)
	assert.Equal(t, models.AuditActionSnapshot, trail[0].Action)
	assert.Equal(t, "aud-1", trail[0].ActorID)
}

func TestOpenIsIdempotent(t *testing.T) {
	svc, reports, _, _, students, _ := auditFixture()
	actor := models.Actor{ID: "aud-1", Name: "Auditor"}

	first, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	// Mutate a student after the snapshot froze; reopening must not refreeze.
	s := students.students["stu-1"]
	s.TotalLightGarmentCount = 99
	students.students["stu-1"] = s

	second, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, string(first.SubmittedData), string(second.SubmittedData))
	assert.Len(t, reports.trail[first.ID], 1, "no duplicate snapshot entry")
}

func TestOpenRacingCallsShareOneReport(t *testing.T) {
	svc, reports, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1", Name: "Auditor"}

	first, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	// A second auditor whose pre-create read raced ahead of the first insert:
	// the unique-open guard rejects the duplicate and Open adopts the winner.
	reports.openMisses = 1
	second, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	open := 0
	for _, r := range reports.reports {
		if r.OrderID == "ord-1" && r.Status == models.AuditReportStatusInProgress {
			open++
		}
	}
	assert.Equal(t, 1, open, "an order carries at most one open report")
	assert.Len(t, reports.trail[first.ID], 1, "single snapshot entry")
}

func TestEditOrderTotalsWritesDiffEntries(t *testing.T) {
	svc, reports, _, _, _, notifier := auditFixture()
	actor := models.Actor{ID: "aud-1", Name: "Auditor"}
	report, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)
	notifier.events = nil

	order, err := svc.EditOrderTotals(context.Background(), report.ID, EditOrderTotalsRequest{
		TotalStudents:      2,
		TotalGarments:      9,
		TotalDarkGarments:  4,
		TotalLightGarments: 5,
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, 9, order.TotalGarments)

	trail := reports.trail[report.ID]
	require.Len(t, trail, 3, "snapshot + two changed fields")
	assert.Equal(t, "total_garments", trail[1].Field)
	assert.Equal(t, "8", trail[1].OldValue)
	assert.Equal(t, "9", trail[1].NewValue)
	assert.Equal(t, "total_dark_garments", trail[2].Field)
	require.Len(t, notifier.events, 1)
}

func TestEditOrderTotalsRejectsMismatchedSum(t *testing.T) {
	svc, _, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	report, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	_, err = svc.EditOrderTotals(context.Background(), report.ID, EditOrderTotalsRequest{
		TotalStudents:      2,
		TotalGarments:      10,
		TotalDarkGarments:  4,
		TotalLightGarments: 5,
	}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEditOrderNoOpLeavesNoTrace(t *testing.T) {
	svc, reports, _, _, _, notifier := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	report, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)
	notifier.events = nil

	_, err = svc.EditOrderTotals(context.Background(), report.ID, EditOrderTotalsRequest{
		TotalStudents:      2,
		TotalGarments:      8,
		TotalDarkGarments:  3,
		TotalLightGarments: 5,
	}, actor)
	require.NoError(t, err)
	assert.Len(t, reports.trail[report.ID], 1, "only the snapshot entry")
	assert.Empty(t, notifier.events)
}

func TestEditClassRejectsForeignClass(t *testing.T) {
	svc, _, _, classes, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	report, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	classes.classes["cls-x"] = models.Class{ID: "cls-x", OrderID: "other-order", Name: "2C"}
	_, err = svc.EditClass(context.Background(), report.ID, "cls-x", EditClassRequest{TotalStudentsToServe: 5}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSaveStudentAuditDetectsDiscrepancy(t *testing.T) {
	svc, reports, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1", Name: "Auditor"}
	opened, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	// Collected dark count differs from the submitted 2.
	report, err := svc.SaveStudentAudit(context.Background(), opened.ID, "stu-1", SaveStudentAuditRequest{
		TotalLightGarmentCount: 3,
		TotalDarkGarmentCount:  5,
	}, actor)
	require.NoError(t, err)

	assert.True(t, report.DiscrepanciesFound)
	assert.Equal(t, 1, report.TotalStudentsAudited)
	assert.Equal(t, 1, report.StudentsWithDiscrepancies)

	trail := reports.trail[opened.ID]
	require.Len(t, trail, 2, "snapshot + one changed field")
	assert.Equal(t, "total_dark_garment_count", trail[1].Field)
	assert.Equal(t, "2", trail[1].OldValue)
	assert.Equal(t, "5", trail[1].NewValue)

	saved := reports.savedStudents["stu-1"]
	assert.True(t, saved.IsAudited)
	assert.Equal(t, 5, saved.TotalDarkGarmentCount)
}

func TestSaveStudentAuditMatchingCountsNoDiscrepancy(t *testing.T) {
	svc, _, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	opened, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	report, err := svc.SaveStudentAudit(context.Background(), opened.ID, "stu-1", SaveStudentAuditRequest{
		TotalLightGarmentCount: 3,
		TotalDarkGarmentCount:  2,
	}, actor)
	require.NoError(t, err)
	assert.False(t, report.DiscrepanciesFound)
	assert.Equal(t, 1, report.TotalStudentsAudited)
	assert.Zero(t, report.StudentsWithDiscrepancies)
}

func TestSaveStudentAuditStickyFlagAndCounters(t *testing.T) {
	svc, _, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	opened, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	_, err = svc.SaveStudentAudit(context.Background(), opened.ID, "stu-1", SaveStudentAuditRequest{
		TotalLightGarmentCount: 3,
		TotalDarkGarmentCount:  5,
	}, actor)
	require.NoError(t, err)

	// Correcting back to the submitted counts does not clear the report flag
	// and does not double-count the student.
	report, err := svc.SaveStudentAudit(context.Background(), opened.ID, "stu-1", SaveStudentAuditRequest{
		TotalLightGarmentCount: 3,
		TotalDarkGarmentCount:  2,
	}, actor)
	require.NoError(t, err)
	assert.True(t, report.DiscrepanciesFound, "flag is sticky")
	assert.Equal(t, 1, report.TotalStudentsAudited)
	assert.Equal(t, 1, report.StudentsWithDiscrepancies)
}

func TestSealIsOneWayAndIdempotent(t *testing.T) {
	svc, reports, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1", Name: "Auditor"}
	opened, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	sealed, err := svc.Seal(context.Background(), opened.ID, actor)
	require.NoError(t, err)
	assert.True(t, sealed.Sealed())
	assert.NotNil(t, sealed.CompletedAt)

	trail := reports.trail[opened.ID]
	last := trail[len(trail)-1]
	assert.Equal(t, models.AuditActionSeal, last.Action)
	assert.Equal(t, string(models.AuditReportStatusInProgress), last.OldValue)
	assert.Equal(t, string(models.AuditReportStatusCompleted), last.NewValue)

	// Re-seal is a no-op success with no extra entry.
	again, err := svc.Seal(context.Background(), opened.ID, actor)
	require.NoError(t, err)
	assert.True(t, again.Sealed())
	assert.Len(t, reports.trail[opened.ID], len(trail))
}

func TestEditsRejectedAfterSeal(t *testing.T) {
	svc, _, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	opened, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)
	_, err = svc.Seal(context.Background(), opened.ID, actor)
	require.NoError(t, err)

	_, err = svc.EditOrderTotals(context.Background(), opened.ID, EditOrderTotalsRequest{
		TotalStudents: 2, TotalGarments: 9, TotalDarkGarments: 4, TotalLightGarments: 5,
	}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrSealedReport))

	_, err = svc.SaveStudentAudit(context.Background(), opened.ID, "stu-1", SaveStudentAuditRequest{
		TotalLightGarmentCount: 3, TotalDarkGarmentCount: 2,
	}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrSealedReport))
}

func TestReportDetailIncludesSnapshotAndTrail(t *testing.T) {
	svc, _, _, _, _, _ := auditFixture()
	actor := models.Actor{ID: "aud-1"}
	opened, err := svc.Open(context.Background(), "ord-1", actor)
	require.NoError(t, err)

	_, err = svc.SaveStudentAudit(context.Background(), opened.ID, "stu-2", SaveStudentAuditRequest{
		TotalLightGarmentCount: 2,
		TotalDarkGarmentCount:  4,
	}, actor)
	require.NoError(t, err)

	detail, err := svc.Report(context.Background(), opened.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Snapshot)
	assert.Equal(t, 8, detail.Snapshot.Order.TotalGarments)
	require.Len(t, detail.Trail, 2)
	assert.True(t, detail.DiscrepanciesFound)
}
