package api

import (
	"errors"
	"log/slog"

	"pairtalk/app/util/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusOf(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fiber.StatusBadRequest
	}

	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return fiber.StatusBadRequest
	case apperr.ErrNotFound:
		return fiber.StatusNotFound
	case apperr.ErrConflict:
		return fiber.StatusConflict
	case apperr.ErrUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(err)

	resp := errorResponse{
		Error: err.Error(),
		Code:  apperr.Code(err),
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err)

		if status == fiber.StatusInternalServerError {
			resp.Error = "internal error"
		}
	}

	return c.Status(status).JSON(resp)
}
