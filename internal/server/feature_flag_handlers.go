package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured feature flags and evaluated state for the current caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":   map[string]string{},
			"flags": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":   s.featureFlags.Raw(),
		"flags": s.featureFlags.Snapshot(actorID(c)),
	})
}
