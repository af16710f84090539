package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printforge/fulfillment-api/internal/models"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
)

type approvalOrderRepository interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	CreateWithRoster(ctx context.Context, order *models.Order, classes []models.Class, students []models.Student) error
}

// CreateStudentRequest is one roster student in an order submission.
type CreateStudentRequest struct {
	FullName          string `json:"full_name" validate:"required"`
	LightGarmentCount int    `json:"light_garment_count" validate:"min=0"`
	DarkGarmentCount  int    `json:"dark_garment_count" validate:"min=0"`
}

// CreateClassRequest is one roster class in an order submission.
type CreateClassRequest struct {
	Name     string                 `json:"name" validate:"required"`
	Students []CreateStudentRequest `json:"students" validate:"dive"`
}

// CreateOrderRequest is a school's full order submission.
type CreateOrderRequest struct {
	SchoolID   string               `json:"school_id" validate:"required"`
	SchoolName string               `json:"school_name" validate:"required"`
	Classes    []CreateClassRequest `json:"classes" validate:"required,min=1,dive"`
}

// ApprovalService handles order intake and listing. Order totals are derived
// from the roster at submission time, never accepted from the payload, so the
// totals invariant holds by construction. The same derived values seed the
// submitted_* mirrors that later anchor audit discrepancy checks.
type ApprovalService struct {
	orders    approvalOrderRepository
	notifier  changePublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService constructs the approval service.
func NewApprovalService(orders approvalOrderRepository, notifier changePublisher, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{orders: orders, notifier: notifier, validator: validate, logger: logger}
}

// Create persists a submitted order with its full roster in one transaction.
func (s *ApprovalService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}

	order := &models.Order{
		ID:         uuid.NewString(),
		SchoolID:   req.SchoolID,
		SchoolName: req.SchoolName,
		Status:     models.OrderStatusSubmitted,
	}

	var classes []models.Class
	var students []models.Student
	for _, c := range req.Classes {
		class := models.Class{
			ID:                   uuid.NewString(),
			Name:                 c.Name,
			IsAttended:           true,
			TotalStudentsToServe: len(c.Students),
		}
		class.SubmittedStudentsCount = intPtr(len(c.Students))
		classes = append(classes, class)

		for _, st := range c.Students {
			student := models.Student{
				ID:                     uuid.NewString(),
				ClassID:                class.ID,
				FullName:               st.FullName,
				TotalLightGarmentCount: st.LightGarmentCount,
				TotalDarkGarmentCount:  st.DarkGarmentCount,
			}
			student.SubmittedLightGarmentCount = intPtr(st.LightGarmentCount)
			student.SubmittedDarkGarmentCount = intPtr(st.DarkGarmentCount)
			students = append(students, student)

			order.TotalStudents++
			order.TotalLightGarments += st.LightGarmentCount
			order.TotalDarkGarments += st.DarkGarmentCount
		}
	}
	order.TotalGarments = order.TotalLightGarments + order.TotalDarkGarments
	order.SubmittedTotalStudents = intPtr(order.TotalStudents)
	order.SubmittedTotalGarments = intPtr(order.TotalGarments)
	order.SubmittedDarkGarments = intPtr(order.TotalDarkGarments)
	order.SubmittedLightGarments = intPtr(order.TotalLightGarments)

	if err := s.orders.CreateWithRoster(ctx, order, classes, students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create order")
	}

	s.logger.Info("order_created",
		zap.String("order_id", order.ID),
		zap.String("school_id", order.SchoolID),
		zap.Int("total_students", order.TotalStudents),
		zap.Int("total_garments", order.TotalGarments),
	)
	s.notifier.Publish(models.ChangeEvent{
		OrderID:  order.ID,
		Table:    models.ChangeTableOrder,
		EntityID: order.ID,
		Action:   "created",
	})
	return order, nil
}

// List returns orders matching the filter with pagination metadata.
func (s *ApprovalService) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, *models.Pagination, error) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return orders, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single order.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	return order, nil
}

func intPtr(v int) *int {
	return &v
}
