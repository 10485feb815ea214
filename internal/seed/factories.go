// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"planit/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Name:       gofakeit.Name(),
		Email:      fmt.Sprintf("%d.%s", gofakeit.Number(100, 999), gofakeit.Email()),
		Role:       models.UserRoleMember,
		Company:    gofakeit.Company(),
		IsActive:   true,
		IsApproved: true,
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Name, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateElevationRequest constructs and persists a pending elevation request
// for the given subject user.
func (f *Factory) CreateElevationRequest(subject *models.User, overrides ...func(*models.ElevationRequest)) (*models.ElevationRequest, error) {
	subjectID := subject.ID
	req := &models.ElevationRequest{
		SubjectUserID: subjectID,
		SubjectName:   subject.Name,
		SubjectEmail:  subject.Email,
		Company:       subject.Company,
		Reason:        gofakeit.Sentence(10),
		RequestedRole: models.ElevationRoleAdmin,
		Status:        models.ElevationStatusPending,
		PendingKey:    &subjectID,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	req.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	for _, override := range overrides {
		override(req)
	}

	if f.opts.DryRun {
		f.nextID++
		req.ID = f.nextID
		log.Printf("[dry-run] CreateElevationRequest: subject=%d role=%s", req.SubjectUserID, req.RequestedRole)
		return req, nil
	}

	if err := f.db.Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// DecideElevationRequest marks a seeded request approved or rejected by the
// given decider, mirroring what the service layer does in production.
func (f *Factory) DecideElevationRequest(req *models.ElevationRequest, decider *models.User, status models.ElevationRequestStatus) error {
	now := time.Now()
	req.Status = status
	req.DecidedByUserID = &decider.ID
	req.DecidedAt = &now
	req.PendingKey = nil

	if f.opts.DryRun {
		log.Printf("[dry-run] DecideElevationRequest: id=%d status=%s", req.ID, status)
		return nil
	}

	if err := f.db.Save(req).Error; err != nil {
		return err
	}

	if status == models.ElevationStatusApproved {
		return f.db.Model(&models.User{}).
			Where("id = ?", req.SubjectUserID).
			Updates(map[string]any{
				"role":        string(req.RequestedRole),
				"is_approved": true,
				"is_active":   true,
				"company":     req.Company,
			}).Error
	}
	return nil
}
