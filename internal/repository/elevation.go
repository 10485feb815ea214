package repository

import (
	"context"
	"errors"

	"planit/internal/cache"
	"planit/internal/models"
	"planit/internal/observability"

	"gorm.io/gorm"
)

// ElevationFilter narrows List results. Zero values mean no filtering.
type ElevationFilter struct {
	Status models.ElevationRequestStatus
	Role   models.ElevationRole
}

// ElevationRepository defines persistence operations for elevation requests.
type ElevationRepository interface {
	GetByID(ctx context.Context, id uint) (*models.ElevationRequest, error)
	HasPendingForSubject(ctx context.Context, subjectUserID uint) (bool, error)
	Create(ctx context.Context, req *models.ElevationRequest) error
	List(ctx context.Context, filter ElevationFilter) ([]models.ElevationRequest, error)
	ListBySubject(ctx context.Context, subjectUserID uint) ([]models.ElevationRequest, error)
}

type elevationRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

// NewElevationRepository returns a new ElevationRepository implementation.
func NewElevationRepository(db *gorm.DB) ElevationRepository {
	return &elevationRepository{db: db, metrics: observability.NewDatabaseMetrics(db)}
}

func (r *elevationRepository) GetByID(ctx context.Context, id uint) (*models.ElevationRequest, error) {
	defer r.metrics.TrackQuery("select", "elevation_requests")()
	var req models.ElevationRequest
	if err := r.db.WithContext(ctx).Preload("DecidedByUser").First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Elevation request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *elevationRepository) HasPendingForSubject(ctx context.Context, subjectUserID uint) (bool, error) {
	defer r.metrics.TrackQuery("select", "elevation_requests")()
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ElevationRequest{}).
		Where("subject_user_id = ? AND status = ?", subjectUserID, models.ElevationStatusPending).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Create persists a new request. The unique index on pending_key is the
// backstop against concurrent duplicate submissions; a violation surfaces as
// a conflict, not an internal error.
func (r *elevationRepository) Create(ctx context.Context, req *models.ElevationRequest) error {
	defer r.metrics.TrackQuery("insert", "elevation_requests")()
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if IsUniqueConstraintError(err) {
			return models.NewConflictError("A pending elevation request already exists for this user")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidatePendingElevation(ctx, req.SubjectUserID)
	return nil
}

func (r *elevationRepository) List(ctx context.Context, filter ElevationFilter) ([]models.ElevationRequest, error) {
	defer r.metrics.TrackQuery("select", "elevation_requests")()
	q := r.db.WithContext(ctx).Preload("DecidedByUser")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		q = q.Where("requested_role = ?", filter.Role)
	}

	var requests []models.ElevationRequest
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *elevationRepository) ListBySubject(ctx context.Context, subjectUserID uint) ([]models.ElevationRequest, error) {
	defer r.metrics.TrackQuery("select", "elevation_requests")()
	var requests []models.ElevationRequest
	if err := r.db.WithContext(ctx).
		Preload("DecidedByUser").
		Where("subject_user_id = ?", subjectUserID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}
