package http

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/core/usecases"
)

const maxPlaceLength = 200

// PlanHandler runs the risk-annotation pipeline for a request body of
// {origin, destination, stride?}. ?format=geojson returns a GeoJSON
// FeatureCollection instead of the default JSON.
func PlanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req domain.PlanRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if placeTooLong(req.Origin) || placeTooLong(req.Destination) {
			return errBadRequest(c, "place too long (max 200 characters)")
		}

		format := strings.ToLower(c.Query("format", "json"))
		if format != "json" && format != "geojson" {
			return errBadRequest(c, "format must be json or geojson")
		}

		ctx := c.UserContext()
		result, err := deps.Planner.Plan(ctx, req, usecases.WithLogger(LoggerFromCtx(ctx)))
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set(fiber.HeaderCacheControl, "no-store")
		if format == "geojson" {
			c.Set(fiber.HeaderContentType, "application/geo+json")
			data, err := PlanFeatureCollection(result).MarshalJSON()
			if err != nil {
				return errInternal(c, err.Error())
			}
			return c.Send(data)
		}
		return c.JSON(newPlanResponse(result))
	}
}

func placeTooLong(p domain.Place) bool {
	return utf8.RuneCountInString(string(p)) > maxPlaceLength
}

// RiskLocationHandler returns the classification of one district.
func RiskLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Catalog == nil {
			return errUnavailable(c, "risk catalog not configured")
		}
		state, district := c.Query("state"), c.Query("district")
		if state == "" || district == "" {
			return errBadRequest(c, "state and district query parameters are required")
		}

		score, err := deps.Catalog.Location(c.UserContext(), state, district)
		if errors.Is(err, domain.ErrUnknownRegion) {
			return errNotFound(c, "location not found: "+district+", "+state)
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(score)
	}
}

// RiskScoresHandler lists classifications, optionally filtered by state.
func RiskScoresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Catalog == nil {
			return errUnavailable(c, "risk catalog not configured")
		}
		scores, err := deps.Catalog.Scores(c.UserContext(), c.Query("state"))
		if err != nil {
			return errFromDomain(c, err)
		}

		page, pg := paginate(c, scores, 100, 500)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// RiskStatesHandler lists states with classified districts.
func RiskStatesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Catalog == nil {
			return errUnavailable(c, "risk catalog not configured")
		}
		states, err := deps.Catalog.States(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if states == nil {
			states = []string{}
		}
		return c.JSON(fiber.Map{"states": states, "count": len(states)})
	}
}

// RiskDistrictsHandler lists the classified districts of a state.
func RiskDistrictsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Catalog == nil {
			return errUnavailable(c, "risk catalog not configured")
		}
		state := c.Query("state")
		if state == "" {
			return errBadRequest(c, "state query parameter is required")
		}

		districts, err := deps.Catalog.Districts(c.UserContext(), state)
		if errors.Is(err, domain.ErrUnknownRegion) {
			return errNotFound(c, "no districts found for state: "+state)
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"state": state, "districts": districts, "count": len(districts)})
	}
}
