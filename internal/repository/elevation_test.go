package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"planit/internal/models"
	"planit/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupElevationRepoTest(t *testing.T) (*gorm.DB, ElevationRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ElevationRequest{}))

	return db, NewElevationRepository(db)
}

func pendingRequestFor(subjectID uint) *models.ElevationRequest {
	id := subjectID
	return &models.ElevationRequest{
		SubjectUserID: subjectID,
		SubjectName:   "Subject",
		SubjectEmail:  fmt.Sprintf("subject%d@example.com", subjectID),
		Company:       "Initech",
		RequestedRole: models.ElevationRoleAdmin,
		Status:        models.ElevationStatusPending,
		PendingKey:    &id,
	}
}

func TestElevationRepository_PendingKeyUnique(t *testing.T) {
	_, repo := setupElevationRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingRequestFor(7)))

	// The unique index on pending_key rejects a second pending request for
	// the same subject even without the service-level pre-check.
	err := repo.Create(ctx, pendingRequestFor(7))
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	// A different subject is unaffected.
	require.NoError(t, repo.Create(ctx, pendingRequestFor(8)))
}

func TestElevationRepository_HasPendingForSubject(t *testing.T) {
	db, repo := setupElevationRepoTest(t)
	ctx := context.Background()

	pending, err := repo.HasPendingForSubject(ctx, 7)
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, repo.Create(ctx, pendingRequestFor(7)))

	pending, err = repo.HasPendingForSubject(ctx, 7)
	require.NoError(t, err)
	assert.True(t, pending)

	// Decided requests do not count as pending.
	require.NoError(t, db.Model(&models.ElevationRequest{}).
		Where("subject_user_id = ?", 7).
		Updates(map[string]any{"status": models.ElevationStatusRejected, "pending_key": nil}).Error)

	pending, err = repo.HasPendingForSubject(ctx, 7)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestElevationRepository_GetByID_NotFound(t *testing.T) {
	_, repo := setupElevationRepoTest(t)

	_, err := repo.GetByID(context.Background(), 404)
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestElevationRepository_ListFilters(t *testing.T) {
	db, repo := setupElevationRepoTest(t)
	ctx := context.Background()

	admin := pendingRequestFor(1)
	require.NoError(t, repo.Create(ctx, admin))

	manager := pendingRequestFor(2)
	manager.RequestedRole = models.ElevationRoleManager
	require.NoError(t, repo.Create(ctx, manager))

	require.NoError(t, db.Model(&models.ElevationRequest{}).
		Where("id = ?", manager.ID).
		Updates(map[string]any{"status": models.ElevationStatusApproved, "pending_key": nil}).Error)

	all, err := repo.List(ctx, ElevationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pendingOnly, err := repo.List(ctx, ElevationFilter{Status: models.ElevationStatusPending})
	require.NoError(t, err)
	require.Len(t, pendingOnly, 1)
	assert.Equal(t, admin.ID, pendingOnly[0].ID)

	managersOnly, err := repo.List(ctx, ElevationFilter{Role: models.ElevationRoleManager})
	require.NoError(t, err)
	require.Len(t, managersOnly, 1)
	assert.Equal(t, manager.ID, managersOnly[0].ID)

	both, err := repo.List(ctx, ElevationFilter{
		Status: models.ElevationStatusApproved,
		Role:   models.ElevationRoleManager,
	})
	require.NoError(t, err)
	assert.Len(t, both, 1)
}

func TestElevationRepository_RecordsQueryLatency(t *testing.T) {
	_, repo := setupElevationRepoTest(t)

	require.NoError(t, repo.Create(context.Background(), pendingRequestFor(3)))

	count := testutil.CollectAndCount(observability.DatabaseQueryLatency, "planit_database_query_latency_seconds")
	assert.GreaterOrEqual(t, count, 1)
}

func TestElevationRepository_ListBySubject(t *testing.T) {
	_, repo := setupElevationRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingRequestFor(1)))
	require.NoError(t, repo.Create(ctx, pendingRequestFor(2)))

	mine, err := repo.ListBySubject(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, uint(1), mine[0].SubjectUserID)
}
