package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"social-backend/internal/apperr"
	"social-backend/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// respond writes a success envelope merged with payload
func respond(w http.ResponseWriter, statusCode int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondMessage writes a success envelope with a message
func respondMessage(w http.ResponseWriter, message string) {
	respond(w, http.StatusOK, map[string]interface{}{"message": message})
}

// respondError maps err to a status code and writes the error envelope.
// Internal errors are logged and never exposed.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": apperr.Message(err),
	})
}

// decode reads a JSON body into dst and validates it
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.Validation, err, "Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apperr.Wrap(apperr.Validation, err, fieldMessage(fieldErrs[0]))
		}
		return apperr.Wrap(apperr.Validation, err, "Invalid request body")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s cannot be empty", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return "Invalid email"
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// pagination parses limit and offset query parameters
func pagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsedOffset
		}
	}

	return limit, offset
}

// formImage reads the "image" part of a multipart request. The returned
// cleanup removes any temp files written while parsing.
func formImage(w http.ResponseWriter, r *http.Request, maxBytes int64) (services.Upload, func(), error) {
	noop := func() {}
	// Allow for multipart framing on top of the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Upload{}, noop, apperr.Wrap(apperr.Validation, err, "Image is too large")
		}
		return services.Upload{}, noop, apperr.Wrap(apperr.Validation, err, "Invalid multipart form")
	}
	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove multipart temp files")
		}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		cleanup()
		return services.Upload{}, noop, apperr.Wrap(apperr.Validation, err, "image cannot be empty")
	}
	return services.Upload{Body: file, Size: header.Size}, func() {
		file.Close()
		cleanup()
	}, nil
}
