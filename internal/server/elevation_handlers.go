package server

import (
	"planit/internal/models"
	"planit/internal/repository"
	"planit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitElevationRequest handles POST /api/elevation-requests
// @Summary Request role elevation
// @Description Open a pending elevation request for the authenticated user. A user may have at most one pending request at a time.
// @Tags elevation-requests
// @Accept json
// @Produce json
// @Param request body object{company=string,roleRequested=string,reason=string} true "Elevation request"
// @Success 200 {object} models.ElevationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /elevation-requests [post]
func (s *Server) SubmitElevationRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	// roleRequested is the documented key; requested_role is accepted as an
	// alias matching the entity's JSON field name.
	var req struct {
		Company       string `json:"company"`
		RoleRequested string `json:"roleRequested"`
		RequestedRole string `json:"requested_role"`
		Reason        string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	role := req.RoleRequested
	if role == "" {
		role = req.RequestedRole
	}

	elevReq, err := s.elevationService.Submit(c.UserContext(), service.SubmitInput{
		SubjectUserID: userID,
		Company:       req.Company,
		RequestedRole: role,
		Reason:        req.Reason,
	})
	if err != nil {
		return models.RespondWithError(c, statusForAppError(err), err)
	}

	return c.JSON(elevReq)
}

// GetElevationRequests handles GET /api/elevation-requests
// @Summary List elevation requests
// @Description List elevation requests, newest first, optionally filtered by status and requested role. Super admin only.
// @Tags elevation-requests
// @Produce json
// @Param status query string false "Filter by status" Enums(pending, approved, rejected)
// @Param role query string false "Filter by requested role" Enums(admin, manager)
// @Success 200 {array} models.ElevationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /elevation-requests [get]
func (s *Server) GetElevationRequests(c *fiber.Ctx) error {
	var filter repository.ElevationFilter

	switch status := c.Query("status"); status {
	case "":
	case string(models.ElevationStatusPending),
		string(models.ElevationStatusApproved),
		string(models.ElevationStatusRejected):
		filter.Status = models.ElevationRequestStatus(status)
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Status must be pending, approved, or rejected"))
	}

	switch role := c.Query("role"); role {
	case "":
	case string(models.ElevationRoleAdmin), string(models.ElevationRoleManager):
		filter.Role = models.ElevationRole(role)
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Role must be admin or manager"))
	}

	requests, err := s.elevationService.List(c.UserContext(), filter)
	if err != nil {
		return models.RespondWithError(c, statusForAppError(err), err)
	}

	return c.JSON(requests)
}

// GetMyElevationRequests handles GET /api/elevation-requests/me
// @Summary List own elevation requests
// @Description List the authenticated user's elevation requests, newest first.
// @Tags elevation-requests
// @Produce json
// @Success 200 {array} models.ElevationRequest
// @Security BearerAuth
// @Router /elevation-requests/me [get]
func (s *Server) GetMyElevationRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	requests, err := s.elevationService.ListForSubject(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, statusForAppError(err), err)
	}

	return c.JSON(requests)
}

// GetElevationRequest handles GET /api/elevation-requests/:id
// @Summary Get an elevation request
// @Description Fetch a single elevation request by ID. Super admin only.
// @Tags elevation-requests
// @Produce json
// @Param id path int true "Elevation request ID"
// @Success 200 {object} models.ElevationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /elevation-requests/{id} [get]
func (s *Server) GetElevationRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, err := s.elevationRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, statusForAppError(err), err)
	}

	return c.JSON(req)
}

// ApproveElevationRequest handles PATCH /api/elevation-requests/:id/accept
// @Summary Approve an elevation request
// @Description Approve a pending elevation request. The subject user's role, approval, activation, and company update in the same transaction. Super admin only.
// @Tags elevation-requests
// @Produce json
// @Param id path int true "Elevation request ID"
// @Success 200 {object} models.ElevationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /elevation-requests/{id}/accept [patch]
func (s *Server) ApproveElevationRequest(c *fiber.Ctx) error {
	return s.decideElevationRequest(c, service.OutcomeApprove)
}

// RejectElevationRequest handles PATCH /api/elevation-requests/:id/reject
// @Summary Reject an elevation request
// @Description Reject a pending elevation request. The subject user is left untouched. Super admin only.
// @Tags elevation-requests
// @Produce json
// @Param id path int true "Elevation request ID"
// @Success 200 {object} models.ElevationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /elevation-requests/{id}/reject [patch]
func (s *Server) RejectElevationRequest(c *fiber.Ctx) error {
	return s.decideElevationRequest(c, service.OutcomeReject)
}

func (s *Server) decideElevationRequest(c *fiber.Ctx, outcome service.Outcome) error {
	deciderID := c.Locals("userID").(uint)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	decided, err := s.elevationService.Decide(c.UserContext(), id, deciderID, outcome)
	if err != nil {
		return models.RespondWithError(c, statusForAppError(err), err)
	}

	return c.JSON(decided)
}
