// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"planit/internal/models"

	"gorm.io/gorm"
)

// SeedOptions configuration for the seeder
type SeedOptions struct {
	NumUsers    int
	ShouldClean bool
	DryRun      bool
	SkipBcrypt  bool
	MaxDays     int
}

// Demo populates the database with a realistic slice of the elevation
// workflow: regular members, a super admin, pending requests, and a mix of
// past approvals and rejections.
func Demo(db *gorm.DB, opts SeedOptions) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 20
	}

	if opts.ShouldClean && !opts.DryRun {
		if err := db.Exec("DELETE FROM elevation_requests").Error; err != nil {
			return fmt.Errorf("clean elevation_requests: %w", err)
		}
		if err := db.Exec("DELETE FROM users").Error; err != nil {
			return fmt.Errorf("clean users: %w", err)
		}
	}

	f := NewFactory(db, opts)

	super, err := f.CreateUser(func(u *models.User) {
		u.Name = "Root Admin"
		u.Email = "root@planit.local"
		u.Role = models.UserRoleSuperAdmin
	})
	if err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}

	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	var pending, approved, rejected int
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}

		// Roughly half the users have asked for elevation at some point.
		if r.Intn(2) == 0 {
			continue
		}

		req, err := f.CreateElevationRequest(user, func(er *models.ElevationRequest) {
			if r.Intn(4) == 0 {
				er.RequestedRole = models.ElevationRoleManager
			}
		})
		if err != nil {
			return fmt.Errorf("seed elevation request: %w", err)
		}

		switch r.Intn(3) {
		case 0:
			pending++
		case 1:
			if err := f.DecideElevationRequest(req, super, models.ElevationStatusApproved); err != nil {
				return fmt.Errorf("seed approval: %w", err)
			}
			approved++
		default:
			if err := f.DecideElevationRequest(req, super, models.ElevationStatusRejected); err != nil {
				return fmt.Errorf("seed rejection: %w", err)
			}
			rejected++
		}
	}

	log.Printf("seeded %d users with %d pending, %d approved, %d rejected elevation requests",
		opts.NumUsers+1, pending, approved, rejected)
	return nil
}
