package models

import "time"

// ElevationRequestStatus defines lifecycle states for role elevation requests.
type ElevationRequestStatus string

const (
	// ElevationStatusPending indicates the request is awaiting a decision.
	ElevationStatusPending ElevationRequestStatus = "pending"
	// ElevationStatusApproved indicates the request was accepted.
	ElevationStatusApproved ElevationRequestStatus = "approved"
	// ElevationStatusRejected indicates the request was denied.
	ElevationStatusRejected ElevationRequestStatus = "rejected"
)

// ElevationRole is a role that can be requested through the elevation workflow.
type ElevationRole string

const (
	// ElevationRoleAdmin requests the admin role.
	ElevationRoleAdmin ElevationRole = "admin"
	// ElevationRoleManager requests the manager role.
	ElevationRoleManager ElevationRole = "manager"
)

// NormalizeElevationRole maps arbitrary input onto a valid requested role.
// Anything that is not "manager" becomes "admin".
func NormalizeElevationRole(raw string) ElevationRole {
	if ElevationRole(raw) == ElevationRoleManager {
		return ElevationRoleManager
	}
	return ElevationRoleAdmin
}

// ElevationRequest is a user's request to be granted the admin or manager role.
//
// SubjectName and SubjectEmail are snapshots taken at submission time and are
// never re-synced, so the audit record shows who asked even if the account is
// later renamed.
//
// PendingKey carries the subject user ID while the request is pending and is
// cleared to NULL on decision. The unique index on it is the store-level
// guarantee that a user has at most one pending request: NULLs never collide,
// so decided requests free the slot while concurrent duplicate submissions
// lose at the index rather than at a racy read-then-write.
type ElevationRequest struct {
	ID              uint                   `gorm:"primaryKey" json:"id"`
	SubjectUserID   uint                   `gorm:"not null;index" json:"subject_user_id"`
	SubjectUser     *User                  `gorm:"foreignKey:SubjectUserID" json:"subject_user,omitempty"`
	SubjectName     string                 `gorm:"size:120;not null" json:"subject_name"`
	SubjectEmail    string                 `gorm:"size:254;not null" json:"subject_email"`
	Company         string                 `gorm:"size:120;not null" json:"company"`
	Reason          string                 `gorm:"type:text" json:"reason"`
	RequestedRole   ElevationRole          `gorm:"type:varchar(20);not null;default:'admin'" json:"requested_role"`
	Status          ElevationRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PendingKey      *uint                  `gorm:"uniqueIndex" json:"-"`
	DecidedByUserID *uint                  `json:"decided_by_user_id"`
	DecidedByUser   *User                  `gorm:"foreignKey:DecidedByUserID" json:"decided_by_user,omitempty"`
	DecidedAt       *time.Time             `json:"decided_at"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// IsPending reports whether the request is still awaiting a decision.
func (r *ElevationRequest) IsPending() bool {
	return r.Status == ElevationStatusPending
}

// Decided reports whether the request has reached a terminal state.
func (r *ElevationRequest) Decided() bool {
	return r.Status == ElevationStatusApproved || r.Status == ElevationStatusRejected
}
