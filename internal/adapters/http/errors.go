package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/saferoute/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`            // bad_request, not_found, no_route_found, ...
	Stage     string `json:"stage,omitempty"` // pipeline stage a plan failed in
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func newError(c *fiber.Ctx, status int, code string, message string) error {
	return writeError(c, APIError{Status: status, Code: code, Message: message})
}

func writeError(c *fiber.Ctx, e APIError) error {
	e.RequestID, _ = c.Locals("requestid").(string)
	return c.Status(e.Status).JSON(e)
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

type kindResponse struct {
	status  int
	message string
}

var kindResponses = map[domain.ErrorKind]kindResponse{
	domain.KindInvalidInput:        {fiber.StatusBadRequest, "origin and destination are required"},
	domain.KindNoMatchFound:        {fiber.StatusNotFound, "we couldn't find one of those places; try a more specific name"},
	domain.KindNoRouteFound:        {fiber.StatusUnprocessableEntity, "no drivable route connects those places"},
	domain.KindUnresolvedRegion:    {fiber.StatusUnprocessableEntity, "part of the route is outside any known district"},
	domain.KindUnknownRegion:       {fiber.StatusUnprocessableEntity, "no safety data is available for part of the route"},
	domain.KindUpstreamUnavailable: {fiber.StatusBadGateway, "a mapping or risk service is unavailable; try again shortly"},
	domain.KindCanceled:            {fiber.StatusRequestTimeout, "the request was canceled"},
}

// errFromDomain maps a pipeline error to its status and user-facing message.
func errFromDomain(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	resp, ok := kindResponses[kind]
	if !ok {
		LoggerFromCtx(c.UserContext()).Error("unexpected error", "error", err)
		return errInternal(c, "unable to calculate route")
	}

	return writeError(c, APIError{
		Status:  resp.status,
		Code:    string(kind),
		Stage:   string(stageOf(err)),
		Message: resp.message,
		Detail:  err.Error(),
	})
}

func stageOf(err error) domain.PlanStage {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
