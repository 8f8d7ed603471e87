package models

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Details string       `json:"details,omitempty"`
}

// RespondOK writes a success envelope.
func RespondOK(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{Success: true, Message: message, Data: data})
}

// RespondWithError translates err into a failure envelope. Internal error text
// is only attached when exposeDetails is set.
func RespondWithError(c *fiber.Ctx, err error, exposeDetails bool) error {
	appErr := toAppError(err)

	resp := Response{
		Success: false,
		Message: appErr.Message,
		Errors:  appErr.Fields,
	}
	if exposeDetails && appErr.Err != nil {
		resp.Details = appErr.Err.Error()
	}

	return c.Status(appErr.Status).JSON(resp)
}

// ErrorHandler is installed as fiber.Config.ErrorHandler so every handler and
// middleware can simply return an error.
func ErrorHandler(exposeDetails bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return RespondWithError(c, err, exposeDetails)
	}
}

func toAppError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		if appErr.Status == 0 {
			appErr.Status = fiber.StatusInternalServerError
		}
		if !appErr.Operational && appErr.Status >= fiber.StatusInternalServerError {
			return &AppError{Code: CodeInternal, Status: appErr.Status, Message: "Internal server error", Err: appErr}
		}
		return appErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusNotFound:
			return &AppError{Code: CodeNotFound, Status: fiberErr.Code, Message: fiberErr.Message, Operational: true}
		case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest, fiber.StatusMethodNotAllowed, fiber.StatusUnsupportedMediaType:
			return &AppError{Code: CodeBadRequest, Status: fiberErr.Code, Message: fiberErr.Message, Operational: true}
		}
		if fiberErr.Code < fiber.StatusInternalServerError {
			return &AppError{Code: CodeBadRequest, Status: fiberErr.Code, Message: fiberErr.Message, Operational: true}
		}
		return NewInternalError(err)
	}

	return NewInternalError(err)
}
