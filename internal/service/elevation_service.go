// Package service implements the application's business workflows on top of the repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planit/internal/cache"
	"planit/internal/middleware"
	"planit/internal/models"
	"planit/internal/notifications"
	"planit/internal/observability"
	"planit/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome is a decision on a pending elevation request.
type Outcome string

const (
	// OutcomeApprove grants the requested role.
	OutcomeApprove Outcome = "approve"
	// OutcomeReject denies the request without mutating the subject user.
	OutcomeReject Outcome = "reject"
)

// SubmitInput carries the fields of a new elevation request.
type SubmitInput struct {
	SubjectUserID uint
	Company       string
	RequestedRole string
	Reason        string
}

// ElevationService owns the lifecycle of elevation requests: submission with
// the one-pending-per-user invariant, the approve/reject decision with its
// atomic user mutation, and the best-effort decision notifications.
type ElevationService struct {
	elevRepo   repository.ElevationRepository
	userRepo   repository.UserRepository
	db         *gorm.DB
	dispatcher *notifications.Dispatcher
	notifier   *notifications.Notifier
}

// NewElevationService returns a new ElevationService. dispatcher and notifier
// may be nil; notifications are then skipped.
func NewElevationService(
	elevRepo repository.ElevationRepository,
	userRepo repository.UserRepository,
	db *gorm.DB,
	dispatcher *notifications.Dispatcher,
	notifier *notifications.Notifier,
) *ElevationService {
	return &ElevationService{
		elevRepo:   elevRepo,
		userRepo:   userRepo,
		db:         db,
		dispatcher: dispatcher,
		notifier:   notifier,
	}
}

// Submit creates a pending elevation request for the subject user,
// snapshotting the subject's current name and email.
func (s *ElevationService) Submit(ctx context.Context, in SubmitInput) (*models.ElevationRequest, error) {
	company := strings.TrimSpace(in.Company)
	if company == "" {
		return nil, models.NewValidationError("Company is required")
	}
	role := models.NormalizeElevationRole(strings.ToLower(strings.TrimSpace(in.RequestedRole)))

	subject, err := s.userRepo.GetByID(ctx, in.SubjectUserID)
	if err != nil {
		return nil, err
	}

	// Application-level pre-check; the unique index on pending_key inside
	// Create is the authoritative guard under concurrent submission.
	pending, err := s.elevRepo.HasPendingForSubject(ctx, in.SubjectUserID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, models.NewConflictError("A pending elevation request already exists for this user")
	}

	subjectID := subject.ID
	req := &models.ElevationRequest{
		SubjectUserID: subjectID,
		SubjectName:   subject.Name,
		SubjectEmail:  subject.Email,
		Company:       company,
		Reason:        strings.TrimSpace(in.Reason),
		RequestedRole: role,
		Status:        models.ElevationStatusPending,
		PendingKey:    &subjectID,
	}
	if err := s.elevRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	observability.ElevationRequestsSubmitted.WithLabelValues(string(role)).Inc()
	s.publishEvent(ctx, notifications.EventElevationSubmitted, req)

	return req, nil
}

// Decide transitions a pending request to approved or rejected. The status
// change and, on approval, the subject user's role/approval/activation
// updates commit in a single transaction; if either write fails neither is
// applied. Decisions are not idempotent: deciding a non-pending request
// fails with a conflict.
func (s *ElevationService) Decide(ctx context.Context, requestID, deciderID uint, outcome Outcome) (*models.ElevationRequest, error) {
	if outcome != OutcomeApprove && outcome != OutcomeReject {
		return nil, models.NewValidationError("Outcome must be approve or reject")
	}

	var decided models.ElevationRequest
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&decided, requestID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.NewNotFoundError("Elevation request", requestID)
			}
			return models.NewInternalError(err)
		}

		if decided.Status != models.ElevationStatusPending {
			return models.NewConflictError("Elevation request has already been decided")
		}

		now := time.Now().UTC()
		decided.DecidedByUserID = &deciderID
		decided.DecidedAt = &now
		decided.PendingKey = nil
		if outcome == OutcomeApprove {
			decided.Status = models.ElevationStatusApproved
		} else {
			decided.Status = models.ElevationStatusRejected
		}

		if err := tx.Save(&decided).Error; err != nil {
			return models.NewInternalError(err)
		}

		if outcome == OutcomeApprove {
			res := tx.Model(&models.User{}).
				Where("id = ?", decided.SubjectUserID).
				Updates(map[string]any{
					"role":        string(decided.RequestedRole),
					"is_approved": true,
					"is_active":   true,
					"company":     decided.Company,
				})
			if res.Error != nil {
				return models.NewInternalError(res.Error)
			}
			if res.RowsAffected == 0 {
				// Subject vanished between submission and decision; roll the
				// whole decision back rather than approve a request whose
				// user mutation cannot be applied.
				return models.NewInternalError(fmt.Errorf("subject user %d missing during approval", decided.SubjectUserID))
			}
		}

		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	cache.InvalidateUser(ctx, decided.SubjectUserID)
	cache.InvalidatePendingElevation(ctx, decided.SubjectUserID)
	observability.ElevationDecisions.WithLabelValues(string(outcome)).Inc()

	s.notifyDecision(ctx, &decided)
	s.publishEvent(ctx, notifications.EventElevationDecided, &decided)

	return &decided, nil
}

// List returns elevation requests matching the filter, newest first, with
// decider identity preloaded for display.
func (s *ElevationService) List(ctx context.Context, filter repository.ElevationFilter) ([]models.ElevationRequest, error) {
	return s.elevRepo.List(ctx, filter)
}

// ListForSubject returns the subject user's own requests, newest first.
func (s *ElevationService) ListForSubject(ctx context.Context, subjectUserID uint) ([]models.ElevationRequest, error) {
	return s.elevRepo.ListBySubject(ctx, subjectUserID)
}

// notifyDecision enqueues the outcome email. Delivery is best-effort and can
// never fail the decision.
func (s *ElevationService) notifyDecision(ctx context.Context, req *models.ElevationRequest) {
	if s.dispatcher == nil {
		return
	}

	var subject, verdict string
	if req.Status == models.ElevationStatusApproved {
		subject = "Admin Access Approved"
		verdict = "approved"
	} else {
		subject = "Admin Access Rejected"
		verdict = "rejected"
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nYour request for the %s role at %s has been %s.\n\n— The PLANIT Team\n",
		req.SubjectName, req.RequestedRole, req.Company, verdict,
	)
	s.dispatcher.Enqueue(ctx, req.SubjectEmail, subject, body)
}

func (s *ElevationService) publishEvent(ctx context.Context, event string, req *models.ElevationRequest) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.PublishElevationEvent(ctx, event, req.SubjectUserID, map[string]any{
		"id":             req.ID,
		"requested_role": req.RequestedRole,
		"status":         req.Status,
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "elevation event publish failed",
			slog.String("event", event),
			slog.Any("request_id", req.ID),
			slog.String("error", err.Error()),
		)
	}
}
