package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/fulfillment-api/internal/models"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
)

type mockRosterRepo struct {
	order    *models.Order
	classes  []models.Class
	students []models.Student
	fail     error
}

func (m *mockRosterRepo) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	return nil, 0, nil
}

func (m *mockRosterRepo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	if m.order != nil && m.order.ID == id {
		return m.order, nil
	}
	return nil, errors.New("not tracked")
}

func (m *mockRosterRepo) CreateWithRoster(ctx context.Context, order *models.Order, classes []models.Class, students []models.Student) error {
	if m.fail != nil {
		return m.fail
	}
	m.order = order
	m.classes = classes
	m.students = students
	return nil
}

func validCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		SchoolID:   "sch-1",
		SchoolName: "SMA 4",
		Classes: []CreateClassRequest{
			{
				Name: "1A",
				Students: []CreateStudentRequest{
					{FullName: "Alda", LightGarmentCount: 3, DarkGarmentCount: 2},
					{FullName: "Bram", LightGarmentCount: 2, DarkGarmentCount: 1},
				},
			},
			{
				Name: "1B",
				Students: []CreateStudentRequest{
					{FullName: "Caro", LightGarmentCount: 1, DarkGarmentCount: 1},
				},
			},
		},
	}
}

func TestCreateDerivesTotalsFromRoster(t *testing.T) {
	repo := &mockRosterRepo{}
	notifier := &mockNotifier{}
	svc := NewApprovalService(repo, notifier, nil, nil)

	order, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusSubmitted, order.Status)
	assert.Equal(t, 3, order.TotalStudents)
	assert.Equal(t, 6, order.TotalLightGarments)
	assert.Equal(t, 4, order.TotalDarkGarments)
	assert.Equal(t, 10, order.TotalGarments)

	require.NotNil(t, order.SubmittedTotalGarments)
	assert.Equal(t, 10, *order.SubmittedTotalGarments)
	require.NotNil(t, order.SubmittedTotalStudents)
	assert.Equal(t, 3, *order.SubmittedTotalStudents)

	require.Len(t, repo.classes, 2)
	assert.Equal(t, 2, repo.classes[0].TotalStudentsToServe)
	require.NotNil(t, repo.classes[0].SubmittedStudentsCount)
	assert.Equal(t, 2, *repo.classes[0].SubmittedStudentsCount)

	require.Len(t, repo.students, 3)
	assert.Equal(t, repo.classes[0].ID, repo.students[0].ClassID)
	require.NotNil(t, repo.students[0].SubmittedLightGarmentCount)
	assert.Equal(t, 3, *repo.students[0].SubmittedLightGarmentCount)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "created", notifier.events[0].Action)
}

func TestCreateRequiresAtLeastOneClass(t *testing.T) {
	svc := NewApprovalService(&mockRosterRepo{}, &mockNotifier{}, nil, nil)

	req := validCreateRequest()
	req.Classes = nil
	_, err := svc.Create(context.Background(), req)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCreateRejectsMissingStudentName(t *testing.T) {
	svc := NewApprovalService(&mockRosterRepo{}, &mockNotifier{}, nil, nil)

	req := validCreateRequest()
	req.Classes[0].Students[0].FullName = ""
	_, err := svc.Create(context.Background(), req)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCreatePropagatesRosterFailure(t *testing.T) {
	repo := &mockRosterRepo{fail: errors.New("tx aborted")}
	notifier := &mockNotifier{}
	svc := NewApprovalService(repo, notifier, nil, nil)

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, notifier.events, "no event on failed create")
}
