package handlers

import (
	"strconv"

	"classledger/internal/adapters/http/middleware"
	"classledger/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// actorFromCtx returns the authenticated actor set by the auth middleware
func actorFromCtx(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(middleware.LocalActor).(domain.Actor)
	return actor, ok
}

// schoolFromCtx returns the caller's school scope set by the auth middleware
func schoolFromCtx(c *fiber.Ctx) (uint, bool) {
	schoolID, ok := c.Locals(middleware.LocalSchoolID).(uint)
	return schoolID, ok
}

// parseIDParam parses a numeric path parameter
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// parseUintQuery parses an optional numeric query parameter, nil if absent
func parseUintQuery(c *fiber.Ctx, name string) *uint {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	u := uint(v)
	return &u
}
