package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"planit/internal/models"
	"planit/internal/repository"
	"planit/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupElevationTestServer(t *testing.T) (*gorm.DB, *Server) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.ElevationRequest{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	elevationRepo := repository.NewElevationRepository(db)
	s := &Server{
		db:            db,
		userRepo:      userRepo,
		elevationRepo: elevationRepo,
	}
	s.elevationService = service.NewElevationService(elevationRepo, userRepo, db, nil, nil)
	return db, s
}

// newElevationApp registers the elevation routes behind a stub auth layer that
// injects the given user ID.
func newElevationApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	app.Post("/elevation-requests", s.SubmitElevationRequest)
	app.Get("/elevation-requests", s.GetElevationRequests)
	app.Get("/elevation-requests/me", s.GetMyElevationRequests)
	app.Get("/elevation-requests/:id", s.GetElevationRequest)
	app.Patch("/elevation-requests/:id/accept", s.ApproveElevationRequest)
	app.Patch("/elevation-requests/:id/reject", s.RejectElevationRequest)
	return app
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Name:       name,
		Email:      email,
		Password:   "pw",
		Role:       role,
		IsActive:   true,
		IsApproved: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func submitRequest(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/elevation-requests", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestSubmitElevationRequestFlow(t *testing.T) {
	db, s := setupElevationTestServer(t)
	member := createTestUser(t, db, "Member", "member@example.com", models.UserRoleMember)
	app := newElevationApp(s, member.ID)

	resp := submitRequest(t, app, `{"company":"Initech","roleRequested":"admin","reason":"ops work"}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var created models.ElevationRequest
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Status != models.ElevationStatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.SubjectName != "Member" || created.SubjectEmail != "member@example.com" {
		t.Fatalf("expected subject snapshot, got %q %q", created.SubjectName, created.SubjectEmail)
	}

	// A second submission while one is pending is rejected.
	dup := submitRequest(t, app, `{"company":"Initech","roleRequested":"admin"}`)
	defer func() { _ = dup.Body.Close() }()
	if dup.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate pending, got %d", dup.StatusCode)
	}
}

func TestSubmitElevationRequest_MissingCompany(t *testing.T) {
	db, s := setupElevationTestServer(t)
	member := createTestUser(t, db, "Member", "member@example.com", models.UserRoleMember)
	app := newElevationApp(s, member.ID)

	resp := submitRequest(t, app, `{"requested_role":"admin"}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestApproveElevationRequestFlow(t *testing.T) {
	db, s := setupElevationTestServer(t)
	member := createTestUser(t, db, "Member", "member@example.com", models.UserRoleMember)
	super := createTestUser(t, db, "Root", "root@example.com", models.UserRoleSuperAdmin)

	memberApp := newElevationApp(s, member.ID)
	resp := submitRequest(t, memberApp, `{"company":"Initech","requested_role":"admin"}`)
	defer func() { _ = resp.Body.Close() }()
	var created models.ElevationRequest
	_ = json.NewDecoder(resp.Body).Decode(&created)

	superApp := newElevationApp(s, super.ID)
	approveURL := fmt.Sprintf("/elevation-requests/%d/accept", created.ID)
	approveResp, err := superApp.Test(httptest.NewRequest(http.MethodPatch, approveURL, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = approveResp.Body.Close() }()
	if approveResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", approveResp.StatusCode)
	}

	var decided models.ElevationRequest
	if err := json.NewDecoder(approveResp.Body).Decode(&decided); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decided.Status != models.ElevationStatusApproved {
		t.Fatalf("expected approved status, got %s", decided.Status)
	}
	if decided.DecidedByUserID == nil || *decided.DecidedByUserID != super.ID {
		t.Fatalf("expected decider %d", super.ID)
	}

	var updated models.User
	if err := db.First(&updated, member.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if updated.Role != models.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", updated.Role)
	}
	if !updated.IsApproved || !updated.IsActive {
		t.Fatalf("expected approved active user, got approved=%v active=%v", updated.IsApproved, updated.IsActive)
	}
	if updated.Company != "Initech" {
		t.Fatalf("expected company Initech, got %q", updated.Company)
	}

	// Deciding again fails: decisions are not idempotent.
	rejectURL := fmt.Sprintf("/elevation-requests/%d/reject", created.ID)
	rejectResp, err := superApp.Test(httptest.NewRequest(http.MethodPatch, rejectURL, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = rejectResp.Body.Close() }()
	if rejectResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for repeat decision, got %d", rejectResp.StatusCode)
	}
}

func TestRejectElevationRequest_LeavesUserUntouched(t *testing.T) {
	db, s := setupElevationTestServer(t)
	member := createTestUser(t, db, "Member", "member@example.com", models.UserRoleMember)
	super := createTestUser(t, db, "Root", "root@example.com", models.UserRoleSuperAdmin)

	memberApp := newElevationApp(s, member.ID)
	resp := submitRequest(t, memberApp, `{"company":"Initech","requested_role":"manager"}`)
	defer func() { _ = resp.Body.Close() }()
	var created models.ElevationRequest
	_ = json.NewDecoder(resp.Body).Decode(&created)

	superApp := newElevationApp(s, super.ID)
	rejectURL := fmt.Sprintf("/elevation-requests/%d/reject", created.ID)
	rejectResp, err := superApp.Test(httptest.NewRequest(http.MethodPatch, rejectURL, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = rejectResp.Body.Close() }()
	if rejectResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rejectResp.StatusCode)
	}

	var updated models.User
	if err := db.First(&updated, member.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if updated.Role != models.UserRoleMember {
		t.Fatalf("expected member role after rejection, got %s", updated.Role)
	}

	// The pending slot is free again, so a new request goes through.
	retry := submitRequest(t, memberApp, `{"company":"Initech","requested_role":"manager"}`)
	defer func() { _ = retry.Body.Close() }()
	if retry.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on resubmission, got %d", retry.StatusCode)
	}
}

// Both body keys name the same field; the documented roleRequested key must
// not be dropped in favor of the entity's snake_case name.
func TestSubmitElevationRequest_RoleKeyAliases(t *testing.T) {
	db, s := setupElevationTestServer(t)
	super := createTestUser(t, db, "Root", "root@example.com", models.UserRoleSuperAdmin)
	superApp := newElevationApp(s, super.ID)

	cases := []struct {
		name string
		user string
		body string
		want models.ElevationRole
	}{
		{"Documented Key", "camel@example.com", `{"company":"Acme","roleRequested":"manager"}`, models.ElevationRoleManager},
		{"Snake Case Alias", "snake@example.com", `{"company":"Acme","requested_role":"manager"}`, models.ElevationRoleManager},
		{"Mixed Case Value", "mixed@example.com", `{"company":"Acme","roleRequested":"Manager"}`, models.ElevationRoleManager},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			member := createTestUser(t, db, "Member", tc.user, models.UserRoleMember)
			app := newElevationApp(s, member.ID)

			resp := submitRequest(t, app, tc.body)
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}

			var created models.ElevationRequest
			if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if created.RequestedRole != tc.want {
				t.Fatalf("expected role %s, got %s", tc.want, created.RequestedRole)
			}

			approveURL := fmt.Sprintf("/elevation-requests/%d/accept", created.ID)
			approveResp, err := superApp.Test(httptest.NewRequest(http.MethodPatch, approveURL, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			_ = approveResp.Body.Close()

			var updated models.User
			if err := db.First(&updated, member.ID).Error; err != nil {
				t.Fatalf("reload user: %v", err)
			}
			if updated.Role != models.UserRoleManager {
				t.Fatalf("expected manager role after approval, got %s", updated.Role)
			}
		})
	}
}

func TestDecideElevationRequest_UnknownID(t *testing.T) {
	db, s := setupElevationTestServer(t)
	super := createTestUser(t, db, "Root", "root@example.com", models.UserRoleSuperAdmin)
	app := newElevationApp(s, super.ID)

	resp, err := app.Test(httptest.NewRequest(http.MethodPatch, "/elevation-requests/12345/accept", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	bad, err := app.Test(httptest.NewRequest(http.MethodPatch, "/elevation-requests/abc/accept", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = bad.Body.Close() }()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed ID, got %d", bad.StatusCode)
	}
}

func TestListElevationRequests_Filters(t *testing.T) {
	db, s := setupElevationTestServer(t)
	super := createTestUser(t, db, "Root", "root@example.com", models.UserRoleSuperAdmin)

	alice := createTestUser(t, db, "Alice", "alice@example.com", models.UserRoleMember)
	bob := createTestUser(t, db, "Bob", "bob@example.com", models.UserRoleMember)

	aliceApp := newElevationApp(s, alice.ID)
	resp := submitRequest(t, aliceApp, `{"company":"Initech","requested_role":"admin"}`)
	_ = resp.Body.Close()

	bobApp := newElevationApp(s, bob.ID)
	resp = submitRequest(t, bobApp, `{"company":"Globex","requested_role":"manager"}`)
	var bobReq models.ElevationRequest
	_ = json.NewDecoder(resp.Body).Decode(&bobReq)
	_ = resp.Body.Close()

	superApp := newElevationApp(s, super.ID)
	rejectURL := fmt.Sprintf("/elevation-requests/%d/reject", bobReq.ID)
	rejectResp, err := superApp.Test(httptest.NewRequest(http.MethodPatch, rejectURL, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = rejectResp.Body.Close()

	listStatuses := func(url string) []models.ElevationRequest {
		t.Helper()
		listResp, err := superApp.Test(httptest.NewRequest(http.MethodGet, url, nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		defer func() { _ = listResp.Body.Close() }()
		if listResp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", url, listResp.StatusCode)
		}
		var requests []models.ElevationRequest
		if err := json.NewDecoder(listResp.Body).Decode(&requests); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return requests
	}

	all := listStatuses("/elevation-requests")
	if len(all) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(all))
	}

	pending := listStatuses("/elevation-requests?status=pending")
	if len(pending) != 1 || pending[0].SubjectUserID != alice.ID {
		t.Fatalf("expected Alice's pending request, got %+v", pending)
	}

	managers := listStatuses("/elevation-requests?role=manager")
	if len(managers) != 1 || managers[0].SubjectUserID != bob.ID {
		t.Fatalf("expected Bob's manager request, got %+v", managers)
	}

	badResp, err := superApp.Test(httptest.NewRequest(http.MethodGet, "/elevation-requests?status=bogus", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = badResp.Body.Close() }()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status filter, got %d", badResp.StatusCode)
	}
}

func TestGetMyElevationRequests_OnlyOwn(t *testing.T) {
	db, s := setupElevationTestServer(t)
	alice := createTestUser(t, db, "Alice", "alice@example.com", models.UserRoleMember)
	bob := createTestUser(t, db, "Bob", "bob@example.com", models.UserRoleMember)

	aliceApp := newElevationApp(s, alice.ID)
	resp := submitRequest(t, aliceApp, `{"company":"Initech","requested_role":"admin"}`)
	_ = resp.Body.Close()

	bobApp := newElevationApp(s, bob.ID)
	mineResp, err := bobApp.Test(httptest.NewRequest(http.MethodGet, "/elevation-requests/me", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = mineResp.Body.Close() }()
	if mineResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", mineResp.StatusCode)
	}

	var mine []models.ElevationRequest
	if err := json.NewDecoder(mineResp.Body).Decode(&mine); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("expected no requests for Bob, got %d", len(mine))
	}
}

func TestSuperAdminRequired(t *testing.T) {
	db, s := setupElevationTestServer(t)
	member := createTestUser(t, db, "Member", "member@example.com", models.UserRoleMember)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", member.ID)
		return c.Next()
	})
	app.Get("/elevation-requests", s.SuperAdminRequired(), s.GetElevationRequests)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/elevation-requests", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
