package server

import (
	"bitboard/internal/feed"
	"bitboard/internal/models"
	"bitboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCategories handles GET /api/categories
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.categoryService.List(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(categories)
}

// GetCategory handles GET /api/categories/:id
// @Summary Get category
// @Tags categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} models.Category
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{id} [get]
func (s *Server) GetCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	category, err := s.categoryService.Get(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(category)
}

// GetThreads handles GET /api/threads
// @Summary List threads
// @Description Newest first; page is zero-based and has_more is exact
// @Tags threads
// @Produce json
// @Param category_id query int false "Category filter"
// @Param page query int false "Page (0-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} feed.Page[models.Thread]
// @Router /threads [get]
func (s *Server) GetThreads(c *fiber.Ctx) error {
	categoryID := c.QueryInt("category_id", 0)
	if categoryID < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid category ID"))
	}

	page, err := s.threadService.ListThreads(c.UserContext(), uint(categoryID), parseCursor(c, feed.DefaultLimit))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// GetThread handles GET /api/threads/:id
// @Summary Get thread with posts
// @Description Posts are oldest first; page is zero-based
// @Tags threads
// @Produce json
// @Param id path int true "Thread ID"
// @Param page query int false "Page (0-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} service.ThreadDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /threads/{id} [get]
func (s *Server) GetThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.threadService.GetThread(c.UserContext(), id, parseCursor(c, feed.DefaultLimit))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(detail)
}

// CreateThread handles POST /api/threads
// @Summary Create thread
// @Description Creates a thread together with its first post
// @Tags threads
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{category_id=int,title=string,content=string,image_url=string,video_url=string,is_anonymous=bool} true "Thread"
// @Success 201 {object} models.Thread
// @Failure 400 {object} models.ErrorResponse
// @Router /threads [post]
func (s *Server) CreateThread(c *fiber.Ctx) error {
	var req struct {
		CategoryID  uint   `json:"category_id"`
		Title       string `json:"title"`
		Content     string `json:"content"`
		ImageURL    string `json:"image_url"`
		VideoURL    string `json:"video_url"`
		IsAnonymous bool   `json:"is_anonymous"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	thread, err := s.threadService.CreateThread(c.UserContext(), service.CreateThreadInput{
		UserID:      currentUserID(c),
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// DeleteThread handles DELETE /api/threads/:id
// @Summary Delete thread
// @Tags threads
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /threads/{id} [delete]
func (s *Server) DeleteThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.threadService.DeleteThread(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreatePost handles POST /api/threads/:id/posts
// @Summary Reply to thread
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Thread ID"
// @Param request body object{content=string,image_url=string,video_url=string,is_anonymous=bool} true "Post"
// @Success 201 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /threads/{id}/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	threadID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content     string `json:"content"`
		ImageURL    string `json:"image_url"`
		VideoURL    string `json:"video_url"`
		IsAnonymous bool   `json:"is_anonymous"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      currentUserID(c),
		ThreadID:    threadID,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string} true "New content"
// @Success 200 {object} models.Post
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), currentUserID(c), id, req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on post
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string,image_url=string} true "Comment"
// @Success 201 {object} models.Comment
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:   currentUserID(c),
		PostID:   postID,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body object{content=string} true "New content"
// @Success 200 {object} models.Comment
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), currentUserID(c), id, req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete comment
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
