package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"task-manager/api/internal/logger"
	"task-manager/api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const internalError = "internal server error"

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// bindingDetail renders a binding or validation failure as a readable sentence.
func bindingDetail(err error) string {
	var (
		verrs     validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		timeErr   *time.ParseError
	)

	switch {
	case errors.As(err, &verrs):
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return strings.Join(msgs, "; ")
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return "request body is not valid JSON"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	case errors.As(err, &timeErr):
		return "due_date must be an RFC 3339 timestamp"
	default:
		return "invalid request"
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := snakeCase(fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return field + " is invalid"
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTaskID):
		abortWithDetail(c, http.StatusBadRequest, "Invalid task id")
	case errors.Is(err, services.ErrNoFieldsToUpdate):
		abortWithDetail(c, http.StatusBadRequest, "No fields to update")
	case errors.Is(err, services.ErrTaskNotFound):
		abortWithDetail(c, http.StatusNotFound, "Task not found")
	default:
		logger.Error("task request failed", "error", err, "path", c.FullPath())
		abortWithDetail(c, http.StatusInternalServerError, internalError)
	}
}

// NotFound and MethodNotAllowed keep unmatched routes on the {"detail"} shape.
func NotFound(c *gin.Context) {
	abortWithDetail(c, http.StatusNotFound, "Not Found")
}

func MethodNotAllowed(c *gin.Context) {
	abortWithDetail(c, http.StatusMethodNotAllowed, "Method Not Allowed")
}
