package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/printforge/fulfillment-api/internal/models"
	appErrors "github.com/printforge/fulfillment-api/pkg/errors"
)

type progressOrderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
}

type progressClassRepository interface {
	ListByOrder(ctx context.Context, orderID string) ([]models.Class, error)
}

type progressStudentRepository interface {
	ListByOrder(ctx context.Context, orderID string) ([]models.Student, error)
}

type progressCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func progressCacheKey(orderID string) string {
	return fmt.Sprintf("progress:%s", orderID)
}

// ProgressService derives the three-tier completion view from stored rows.
// Pure reads: any number of viewers may recompute concurrently and converge
// on identical results, including the current-pointer selection.
type ProgressService struct {
	orders   progressOrderRepository
	classes  progressClassRepository
	students progressStudentRepository
	schedule *ScheduleService
	cache    progressCache
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewProgressService constructs the progress aggregator.
func NewProgressService(orders progressOrderRepository, classes progressClassRepository, students progressStudentRepository, schedule *ScheduleService, cache progressCache, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}
	return &ProgressService{orders: orders, classes: classes, students: students, schedule: schedule, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

// Progress aggregates per-student phases, per-class statuses, the completion
// percentage and the current pointer for an order. The cached copy is a
// display accelerator only; refresh=true bypasses it and every cache entry is
// dropped on change events, so stale reads self-correct within the TTL.
func (s *ProgressService) Progress(ctx context.Context, orderID string, refresh bool) (*models.OrderProgress, error) {
	key := progressCacheKey(orderID)
	if !refresh && s.cache != nil {
		var cached models.OrderProgress
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	classes, err := s.classes.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	students, err := s.students.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	progress := s.aggregate(order, classes, students)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, progress, s.cacheTTL); err != nil {
			s.logger.Warn("progress_cache_set_failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return progress, nil
}

// Invalidate drops the cached progress view for an order.
func (s *ProgressService) Invalidate(ctx context.Context, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, progressCacheKey(orderID)); err != nil {
		s.logger.Warn("progress_cache_invalidate_failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *ProgressService) aggregate(order *models.Order, classes []models.Class, students []models.Student) *models.OrderProgress {
	// students arrive in stable (name, id) order; preserve it per class.
	byClass := make(map[string][]models.Student, len(classes))
	served := 0
	for _, st := range students {
		byClass[st.ClassID] = append(byClass[st.ClassID], st)
		if st.IsServed {
			served++
		}
	}

	progress := &models.OrderProgress{
		OrderID: order.ID,
		Status:  order.Status,
		Served:  served,
		Total:   order.TotalStudents,
		Classes: make([]models.ClassProgress, 0, len(classes)),
	}

	if order.TotalStudents > 0 {
		pct := float64(served) / float64(order.TotalStudents) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		progress.Percentage = pct
	}

	for _, class := range classes {
		roster := byClass[class.ID]
		cp := models.ClassProgress{
			Class:        class,
			StudentCount: len(roster),
			Students:     make([]models.StudentProgress, 0, len(roster)),
		}
		anyPrinted := false
		for _, st := range roster {
			phase := st.Phase()
			if st.IsServed {
				cp.ServedCount++
			}
			if phase != models.StudentPhaseWaiting {
				anyPrinted = true
			}
			cp.Students = append(cp.Students, models.StudentProgress{Student: st, Phase: phase})

			if progress.Current == nil && !st.IsServed {
				progress.Current = &models.CurrentPointer{
					ClassID:     class.ID,
					ClassName:   class.Name,
					StudentID:   st.ID,
					StudentName: st.FullName,
				}
			}
		}
		cp.Status = classStatus(roster, cp.ServedCount, anyPrinted)
		progress.Classes = append(progress.Classes, cp)
	}

	if order.Status == models.OrderStatusQueued && order.ScheduledDate != nil {
		cd := s.schedule.Countdown(*order.ScheduledDate)
		progress.Countdown = &cd
	}
	return progress
}

func classStatus(roster []models.Student, servedCount int, anyPrinted bool) models.ClassStatus {
	switch {
	case len(roster) > 0 && servedCount == len(roster):
		return models.ClassStatusCompleted
	case !anyPrinted:
		return models.ClassStatusPending
	default:
		return models.ClassStatusPrinting
	}
}
