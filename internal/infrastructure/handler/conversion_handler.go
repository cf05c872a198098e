// Package handler internal/infrastructure/handler/conversion_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/application/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// MaxRequestBodyBytes caps the size of an exchange request body
const MaxRequestBodyBytes = 64 << 10

// ConversionHandler handles HTTP requests for currency conversion
type ConversionHandler struct {
	service  *service.ConversionService
	validate *validator.Validate
	logger   logger.Logger
	now      func() time.Time
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(service *service.ConversionService, log logger.Logger) *ConversionHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ConversionHandler{
		service:  service,
		validate: newValidator(),
		logger:   log,
		now:      time.Now,
	}
}

// newValidator reports field errors under their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Exchange converts an amount between PLN and a foreign currency at the rate of a given day
func (h *ConversionHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Info("Handling exchange request", map[string]interface{}{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)

	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendErrorResponse(w, h.logger, "Request body too large",
				fmt.Sprintf("The request body must not exceed %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge, requestID)
			return
		}
		sendErrorResponse(w, h.logger, "Invalid request body",
			"The request body could not be parsed as valid JSON", http.StatusUnprocessableEntity, requestID)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("Request validation failed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request",
			describeValidationError(err), http.StatusUnprocessableEntity, requestID)
		return
	}

	date, ok := h.parseDate(w, req.ExchangeDate, requestID)
	if !ok {
		return
	}

	h.logger.Debug("Request parsed", map[string]interface{}{
		"request_id":   requestID,
		"date":         req.ExchangeDate,
		"in_currency":  req.InCurrency,
		"out_currency": req.OutCurrency,
		"amount":       *req.Amount,
	})

	amount, err := h.service.Convert(r.Context(), *req.Amount,
		entity.Currency(req.InCurrency), entity.Currency(req.OutCurrency), date)
	if err != nil {
		writeServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ExchangeResponse{Amount: amount})
}

// parseDate parses a request date and rejects days that have not happened yet
func (h *ConversionHandler) parseDate(w http.ResponseWriter, value, requestID string) (time.Time, bool) {
	date, err := entity.ParseDate(value)
	if err != nil {
		h.logger.Warn("Invalid date format", map[string]interface{}{
			"request_id": requestID,
			"date":       value,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid date format",
			"Date must be in YYYY-MM-DD format", http.StatusUnprocessableEntity, requestID)
		return time.Time{}, false
	}

	if date.After(entity.NormalizeDate(h.now().UTC())) {
		h.logger.Warn("Future date not allowed", map[string]interface{}{
			"request_id": requestID,
			"date":       value,
		})
		sendErrorResponse(w, h.logger, "Future date not allowed",
			"Exchange rates are only published for past days", http.StatusUnprocessableEntity, requestID)
		return time.Time{}, false
	}

	return date, true
}

// RegisterRoutes registers the conversion handler routes
func (h *ConversionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/exchange", h.Exchange).Methods(http.MethodPost)

	h.logger.Info("Conversion routes registered", map[string]interface{}{
		"routes": []string{
			"POST /exchange",
		},
	})
}

// describeValidationError lists the failing fields in a client readable form
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must be in YYYY-MM-DD format", fe.Field()))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "nefield":
			parts = append(parts, fmt.Sprintf("%s must differ from in_currency", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
