package server

import (
	"bitboard/internal/models"
	"bitboard/internal/service"
	"bitboard/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get current user's profile
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.Profile
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := currentUserID(c)
	profile, err := s.userService.GetProfile(c.UserContext(), userID, userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get user profile
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// GetUserProfileByUsername handles GET /api/users/by-username/:username
// @Summary Get user profile by username
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/by-username/{username} [get]
func (s *Server) GetUserProfileByUsername(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfileByUsername(c.UserContext(), currentUserID(c), c.Params("username"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// GetFollowingActivity handles GET /api/users/me/following/activity
// @Summary Recent activity of followed users
// @Description Latest posts, comments and reactions, newest first
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Activity
// @Router /users/me/following/activity [get]
func (s *Server) GetFollowingActivity(c *fiber.Ctx) error {
	items, err := s.followService.Activity(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(items)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update current user's profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{username=string,bio=string} true "Profile fields"
// @Success 200 {object} models.User
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		Bio      *string `json:"bio"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:   currentUserID(c),
		Username: req.Username,
		Bio:      req.Bio,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// UploadAvatar handles POST /api/users/me/avatar
// @Summary Upload avatar
// @Description The image is cropped square, scaled down and stored as webp
// @Tags users
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param avatar formData file true "Image (png, jpeg, gif or webp)"
// @Success 200 {object} models.User
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	fh, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("avatar file is required"))
	}
	if fh.Size > storage.MaxAvatarBytes {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Avatar is too large"))
	}
	f, err := fh.Open()
	if err != nil {
		return respond(c, models.NewInternalError(err))
	}
	defer f.Close()

	user, err := s.userService.UploadAvatar(c.UserContext(), currentUserID(c), f)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// UploadMedia handles POST /api/uploads
// @Summary Upload post or comment media
// @Tags uploads
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image or video"
// @Success 201 {object} object{url=string}
// @Router /uploads [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("file is required"))
	}
	if fh.Size > storage.MaxMediaBytes {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("File is too large"))
	}
	f, err := fh.Open()
	if err != nil {
		return respond(c, models.NewInternalError(err))
	}
	defer f.Close()

	url, err := s.userService.UploadMedia(c.UserContext(), currentUserID(c), fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}
