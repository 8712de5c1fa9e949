package server

import (
	"context"

	"bitboard/internal/feed"
	"bitboard/internal/models"
	"bitboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

// parseReason reads an optional {"reason": "..."} body. An empty body is allowed.
func parseReason(c *fiber.Ctx) (string, error) {
	var req reasonRequest
	if len(c.Body()) == 0 {
		return "", nil
	}
	if err := parseBody(c, &req); err != nil {
		return "", err
	}
	return req.Reason, nil
}

// GetReports handles GET /api/moderation/reports
// @Summary List reports
// @Tags moderation
// @Security BearerAuth
// @Produce json
// @Param status query string false "pending, reviewed, resolved or dismissed"
// @Param page query int false "Page (0-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} feed.Page[models.Report]
// @Failure 403 {object} models.ErrorResponse
// @Router /moderation/reports [get]
func (s *Server) GetReports(c *fiber.Ctx) error {
	status := models.ReportStatus(c.Query("status"))
	switch status {
	case "", models.ReportPending, models.ReportReviewed, models.ReportResolved, models.ReportDismissed:
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid report status"))
	}

	page, err := s.moderationService.ListReports(c.UserContext(), currentUserID(c), status, parseCursor(c, feed.DefaultLimit))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// ResolveReport handles POST /api/moderation/reports/:id/resolve
// @Summary Resolve report
// @Tags moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body object{reason=string} false "Note"
// @Success 200 {object} models.Report
// @Failure 409 {object} models.ErrorResponse
// @Router /moderation/reports/{id}/resolve [post]
func (s *Server) ResolveReport(c *fiber.Ctx) error {
	return s.reviewReport(c, s.moderationService.ResolveReport)
}

// DismissReport handles POST /api/moderation/reports/:id/dismiss
// @Summary Dismiss report
// @Tags moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body object{reason=string} false "Note"
// @Success 200 {object} models.Report
// @Failure 409 {object} models.ErrorResponse
// @Router /moderation/reports/{id}/dismiss [post]
func (s *Server) DismissReport(c *fiber.Ctx) error {
	return s.reviewReport(c, s.moderationService.DismissReport)
}

type reviewFunc func(ctx context.Context, moderatorID, reportID uint, note string) (*models.Report, error)

func (s *Server) reviewReport(c *fiber.Ctx, review reviewFunc) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	note, err := parseReason(c)
	if err != nil {
		return nil
	}
	report, err := review(c.UserContext(), currentUserID(c), id, note)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(report)
}

// DeleteContent handles POST /api/moderation/content/:type/:id/delete
// @Summary Delete content as moderator
// @Tags moderation
// @Security BearerAuth
// @Accept json
// @Param type path string true "thread, post or comment"
// @Param id path int true "Content ID"
// @Param request body object{reason=string} false "Reason"
// @Success 204
// @Router /moderation/content/{type}/{id}/delete [post]
func (s *Server) DeleteContent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := parseReason(c)
	if err != nil {
		return nil
	}
	t := models.ContentType(c.Params("type"))
	if err := s.moderationService.DeleteContent(c.UserContext(), currentUserID(c), t, id, reason); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// BanUser handles POST /api/moderation/users/:id/ban
// @Summary Ban user
// @Description duration_days of 0 or absent bans permanently
// @Tags moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body object{reason=string,duration_days=int} true "Ban"
// @Success 201 {object} models.UserBan
// @Router /moderation/users/{id}/ban [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason       string `json:"reason"`
		DurationDays int    `json:"duration_days"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ban, err := s.moderationService.BanUser(c.UserContext(), service.BanUserInput{
		ModeratorID:  currentUserID(c),
		UserID:       id,
		Reason:       req.Reason,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ban)
}

// UnbanUser handles POST /api/moderation/users/:id/unban
// @Summary Unban user
// @Tags moderation
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{reason=string} false "Reason"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /moderation/users/{id}/unban [post]
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := parseReason(c)
	if err != nil {
		return nil
	}
	if err := s.moderationService.UnbanUser(c.UserContext(), currentUserID(c), id, reason); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetModerationActions handles GET /api/moderation/actions
// @Summary Audit log
// @Tags moderation
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page (0-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} feed.Page[models.ModerationAction]
// @Router /moderation/actions [get]
func (s *Server) GetModerationActions(c *fiber.Ctx) error {
	page, err := s.moderationService.ListActions(c.UserContext(), currentUserID(c), parseCursor(c, feed.DefaultLimit))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}
