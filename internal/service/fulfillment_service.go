package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/printforge/fulfillment-api/internal/models"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
)

// TransitionAction names a lifecycle transition request.
type TransitionAction string

const (
	ActionConfirm  TransitionAction = "confirm"
	ActionPickup   TransitionAction = "pickup"
	ActionStart    TransitionAction = "start"
	ActionPackage  TransitionAction = "package"
	ActionDeliver  TransitionAction = "deliver"
	ActionComplete TransitionAction = "complete"
	ActionAbort    TransitionAction = "abort"
)

type transitionRule struct {
	from []models.OrderStatus
	to   models.OrderStatus
}

// transitions is the fixed, domain-specific transition table. Scheduling
// (SUBMITTED/CONFIRMED -> QUEUED) is handled separately because it carries
// scheduling metadata in the same atomic operation.
var transitions = map[TransitionAction]transitionRule{
	ActionConfirm:  {from: []models.OrderStatus{models.OrderStatusSubmitted}, to: models.OrderStatusConfirmed},
	ActionPickup:   {from: []models.OrderStatus{models.OrderStatusQueued}, to: models.OrderStatusPickup},
	ActionStart:    {from: []models.OrderStatus{models.OrderStatusPickup}, to: models.OrderStatusOngoing},
	ActionPackage:  {from: []models.OrderStatus{models.OrderStatusOngoing}, to: models.OrderStatusPackaging},
	ActionDeliver:  {from: []models.OrderStatus{models.OrderStatusPackaging}, to: models.OrderStatusDelivery},
	ActionComplete: {from: []models.OrderStatus{models.OrderStatusDelivery}, to: models.OrderStatusCompleted},
	ActionAbort: {from: []models.OrderStatus{
		models.OrderStatusUnsubmitted, models.OrderStatusSubmitted, models.OrderStatusConfirmed,
		models.OrderStatusAutoConfirmed, models.OrderStatusQueued, models.OrderStatusPickup,
		models.OrderStatusOngoing, models.OrderStatusPackaging, models.OrderStatusDelivery,
	}, to: models.OrderStatusAborted},
}

// schedulableStatuses are the source states from which an order may be queued.
var schedulableStatuses = []models.OrderStatus{
	models.OrderStatusSubmitted, models.OrderStatusConfirmed, models.OrderStatusAutoConfirmed,
}

type fulfillmentOrderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error)
	Queue(ctx context.Context, id string, from []models.OrderStatus, scheduledDate time.Time, estimatedHours float64) (bool, error)
}

type fulfillmentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdatePrinting(ctx context.Context, student *models.Student) error
}

// changePublisher pushes refetch hints to live viewers. Fire-and-forget: a
// dropped event only delays a refresh, it never corrupts derived state.
type changePublisher interface {
	Publish(event models.ChangeEvent)
}

// ScheduleOrderRequest carries the schedule+queue payload.
type ScheduleOrderRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
}

// RecordPrintingRequest carries the staff-side progress payload for a student.
type RecordPrintingRequest struct {
	PrintedLightGarmentCount int  `json:"printed_light_garment_count" validate:"min=0"`
	PrintedDarkGarmentCount  int  `json:"printed_dark_garment_count" validate:"min=0"`
	MarkServed               bool `json:"mark_served"`
}

// FulfillmentService owns the order status state machine and the staff-side
// printing progress writes.
type FulfillmentService struct {
	orders    fulfillmentOrderRepository
	students  fulfillmentStudentRepository
	schedule  *ScheduleService
	notifier  changePublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFulfillmentService constructs the fulfillment service.
func NewFulfillmentService(orders fulfillmentOrderRepository, students fulfillmentStudentRepository, schedule *ScheduleService, notifier changePublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FulfillmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentService{orders: orders, students: students, schedule: schedule, notifier: notifier, metrics: metrics, validator: validate, logger: logger}
}

// Apply executes a lifecycle transition. Re-issuing a transition whose target
// state already holds is a no-op success with no event. An invalid source
// state fails with STATE_CONFLICT and no side effects. The repository re-checks
// the source status at commit, so a race between two staff members yields one
// winner and one conflict/no-op.
func (s *FulfillmentService) Apply(ctx context.Context, orderID string, action TransitionAction) (*models.Order, error) {
	rule, ok := transitions[action]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown transition %q", action))
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	if order.Status == rule.to {
		return order, nil
	}
	if !statusIn(order.Status, rule.from) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot %s order in status %s", action, order.Status))
	}

	applied, err := s.orders.UpdateStatus(ctx, orderID, rule.from, rule.to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}
	if !applied {
		return s.resolveStale(ctx, orderID, action, rule.to)
	}

	order.Status = rule.to
	s.metrics.RecordTransition(string(rule.to))
	s.logger.Info("order_transition",
		zap.String("order_id", orderID),
		zap.String("action", string(action)),
		zap.String("status", string(rule.to)),
	)
	s.notifier.Publish(models.ChangeEvent{
		OrderID:  orderID,
		Table:    models.ChangeTableOrder,
		EntityID: orderID,
		Action:   "status:" + string(rule.to),
	})
	return order, nil
}

// Schedule atomically queues an order: status change, scheduled date,
// estimated duration and the queued_at stamp commit together or not at all.
func (s *FulfillmentService) Schedule(ctx context.Context, orderID string, req ScheduleOrderRequest) (*models.Order, *models.DurationEstimate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	est := s.schedule.Estimate(order.TotalGarments)

	if order.Status == models.OrderStatusQueued {
		if order.ScheduledDate != nil && order.ScheduledDate.Equal(req.ScheduledDate) {
			return order, &est, nil
		}
		return nil, nil, appErrors.Clone(appErrors.ErrStateConflict, "order already queued")
	}
	if !statusIn(order.Status, schedulableStatuses) {
		return nil, nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot schedule order in status %s", order.Status))
	}

	queued, err := s.orders.Queue(ctx, orderID, schedulableStatuses, req.ScheduledDate.UTC(), est.StoredHours)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue order")
	}
	if !queued {
		current, err := s.orders.FindByID(ctx, orderID)
		if err == nil && current.Status == models.OrderStatusQueued && current.ScheduledDate != nil && current.ScheduledDate.Equal(req.ScheduledDate) {
			return current, &est, nil
		}
		return nil, nil, appErrors.Clone(appErrors.ErrStateConflict, "order was transitioned concurrently")
	}

	updated, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload order")
	}

	s.metrics.RecordTransition(string(models.OrderStatusQueued))
	s.logger.Info("order_queued",
		zap.String("order_id", orderID),
		zap.Time("scheduled_date", req.ScheduledDate),
		zap.Float64("estimated_hours", est.StoredHours),
	)
	s.notifier.Publish(models.ChangeEvent{
		OrderID:  orderID,
		Table:    models.ChangeTableOrder,
		EntityID: orderID,
		Action:   "status:" + string(models.OrderStatusQueued),
	})
	return updated, &est, nil
}

// Estimate exposes the duration estimate for an order's garment volume.
func (s *FulfillmentService) Estimate(ctx context.Context, orderID string) (*models.DurationEstimate, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	est := s.schedule.Estimate(order.TotalGarments)
	return &est, nil
}

// RecordPrinting updates a student's printed counts during fulfillment.
// Serving a student requires every counted garment to be printed first.
func (s *FulfillmentService) RecordPrinting(ctx context.Context, orderID, studentID string, req RecordPrintingRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid printing payload")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.OrderID != orderID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in order")
	}

	student.PrintedLightGarmentCount = req.PrintedLightGarmentCount
	student.PrintedDarkGarmentCount = req.PrintedDarkGarmentCount
	student.LightGarmentsPrinted = student.PrintedLightGarmentCount >= student.TotalLightGarmentCount
	student.DarkGarmentsPrinted = student.PrintedDarkGarmentCount >= student.TotalDarkGarmentCount

	if student.LightGarmentsPrinted && student.DarkGarmentsPrinted && student.PrintingDoneAt == nil {
		now := time.Now().UTC()
		student.PrintingDoneAt = &now
	}

	if req.MarkServed {
		if !student.LightGarmentsPrinted || !student.DarkGarmentsPrinted {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cannot serve student before all garments are printed")
		}
		student.IsServed = true
	}

	if err := s.students.UpdatePrinting(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.notifier.Publish(models.ChangeEvent{
		OrderID:  orderID,
		Table:    models.ChangeTableStudent,
		EntityID: student.ID,
		Action:   "printing",
	})
	return student, nil
}

func (s *FulfillmentService) resolveStale(ctx context.Context, orderID string, action TransitionAction, target models.OrderStatus) (*models.Order, error) {
	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload order")
	}
	if current.Status == target {
		return current, nil
	}
	return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("cannot %s order in status %s", action, current.Status))
}

func statusIn(status models.OrderStatus, set []models.OrderStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
