package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// ErrorResponse is the JSON body returned for failed requests. The
// correlation id is present on internal errors only; it joins a client
// report to the matching server log line.
type ErrorResponse struct {
	Error struct {
		Message       string `json:"message"`
		Category      string `json:"category,omitempty"`
		TextCode      string `json:"text_code,omitempty"`
		CorrelationID string `json:"correlation_id,omitempty"`
	} `json:"error"`
}

// NewErrorHandler builds the app level fiber error handler. Rich errors map
// to their HTTP code; anything else becomes a 500 without leaking internals.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		if fe, ok := err.(*fiber.Error); ok {
			return writeErrorJSON(c, fe.Code, fe.Message, "", "", "")
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := richErr.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}

		message := richErr.Message
		correlationID := ""
		if status >= fiber.StatusInternalServerError {
			message = "An unexpected server error occurred"
			correlationID = uuid.NewString()
		}

		logger.Info(
			"request error: %s category=%s status=%d correlation_id=%s details=%s",
			richErr.Message,
			richErr.Category,
			status,
			correlationID,
			print.MaybePrettyJSON(richErr.Metadata),
		)

		return writeErrorJSON(c, status, message, string(richErr.Category), richErr.TextCode, correlationID)
	}
}

func writeErrorJSON(c *fiber.Ctx, status int, message, category, textCode, correlationID string) error {
	body := ErrorResponse{}
	body.Error.Message = message
	body.Error.Category = category
	body.Error.TextCode = textCode
	body.Error.CorrelationID = correlationID
	return c.Status(status).JSON(body)
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

// NewValidationError wraps an ozzo validation error as a rich bad request.
func NewValidationError(err error) *errors.Error {
	meta := map[string]any{}
	for field, msg := range FormatValidationErrorToMap(err) {
		meta[field] = msg
	}

	return errors.New("invalid request payload", errors.CategoryValidation).
		WithCode(errors.CodeBadRequest).
		WithMetadata(meta)
}
