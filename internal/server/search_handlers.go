package server

import (
	"github.com/gofiber/fiber/v2"
)

// Search handles GET /api/search?q=
// @Summary Search threads, posts and users
// @Description Queries shorter than two characters return no results
// @Tags search
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {object} search.Response
// @Failure 500 {object} object{error=string}
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	resp, err := s.searchService.Search(c.UserContext(), currentUserID(c), c.Query("q"))
	if err != nil {
		// Search failures are never detailed to the caller.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.JSON(resp)
}

// GetFeatureFlags handles GET /api/flags
// @Summary Feature flags for the current user
// @Tags flags
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}

// SetFeatureFlag handles PUT /api/flags/:name
// @Summary Override a feature flag
// @Description Admin only. An empty value removes the flag
// @Tags flags
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param name path string true "Flag name"
// @Param request body object{value=string} true "on, off or N%"
// @Success 200 {object} object{raw=map[string]string}
// @Router /flags/{name} [put]
func (s *Server) SetFeatureFlag(c *fiber.Ctx) error {
	var req struct {
		Value string `json:"value"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.featureFlags.Set(c.Params("name"), req.Value); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"raw": s.featureFlags.Raw()})
}
