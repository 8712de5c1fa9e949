package server

import (
	"bitboard/internal/models"
	"bitboard/internal/repository"
	"bitboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type reactionRequest struct {
	ReactionType models.ReactionType `json:"reaction_type"`
}

// TogglePostReaction handles POST /api/posts/:id/reactions
// @Summary Toggle reaction on post
// @Description Same type removes the reaction, a different type replaces it
// @Tags reactions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{reaction_type=string} true "Reaction"
// @Success 200 {object} models.ReactionSummary
// @Router /posts/{id}/reactions [post]
func (s *Server) TogglePostReaction(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.toggleReaction(c, repository.ReactionTarget{PostID: id})
}

// ToggleCommentReaction handles POST /api/comments/:id/reactions
// @Summary Toggle reaction on comment
// @Tags reactions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body object{reaction_type=string} true "Reaction"
// @Success 200 {object} models.ReactionSummary
// @Router /comments/{id}/reactions [post]
func (s *Server) ToggleCommentReaction(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.toggleReaction(c, repository.ReactionTarget{CommentID: id})
}

func (s *Server) toggleReaction(c *fiber.Ctx, target repository.ReactionTarget) error {
	var req reactionRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	summary, err := s.reactionService.Toggle(c.UserContext(), currentUserID(c), target, req.ReactionType)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(summary)
}

// ToggleFollow handles POST /api/users/:id/follow
// @Summary Follow or unfollow a user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.FollowResult
// @Failure 400 {object} models.ErrorResponse
// @Router /users/{id}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Toggle(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// CreateReport handles POST /api/reports
// @Summary Report content
// @Tags reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{content_type=string,content_id=int,reason=string,description=string} true "Report"
// @Success 201 {object} models.Report
// @Router /reports [post]
func (s *Server) CreateReport(c *fiber.Ctx) error {
	var req struct {
		ContentType models.ContentType  `json:"content_type"`
		ContentID   uint                `json:"content_id"`
		Reason      models.ReportReason `json:"reason"`
		Description string              `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.reportService.Create(c.UserContext(), service.CreateReportInput{
		ReporterID:  currentUserID(c),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// ValidateMentions handles POST /api/mentions/validate
// @Summary Check which @mentions exist
// @Tags mentions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{content=string} true "Draft text"
// @Success 200 {object} object{mentions=map[string]bool}
// @Router /mentions/validate [post]
func (s *Server) ValidateMentions(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	found, err := s.mentions.ValidateUsernames(c.UserContext(), req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"mentions": found})
}
