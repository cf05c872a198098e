package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/application/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// RateHandler handles HTTP requests for single rate lookups and health checks
type RateHandler struct {
	service *service.ConversionService
	logger  logger.Logger
	now     func() time.Time
}

// NewRateHandler creates a new rate handler
func NewRateHandler(service *service.ConversionService, log logger.Logger) *RateHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateHandler{
		service: service,
		logger:  log,
		now:     time.Now,
	}
}

// GetRate returns the PLN rate of one foreign currency on a given day
func (h *RateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	vars := mux.Vars(r)
	code := vars["currency"]
	day := vars["date"]

	h.logger.Info("Handling get rate request", map[string]interface{}{
		"request_id": requestID,
		"currency":   code,
		"date":       day,
	})

	currency, err := entity.ParseCurrency(code)
	if err != nil {
		writeServiceError(w, h.logger, err, requestID)
		return
	}

	date, err := entity.ParseDate(day)
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid date format",
			"Date must be in YYYY-MM-DD format", http.StatusUnprocessableEntity, requestID)
		return
	}
	if date.After(entity.NormalizeDate(h.now().UTC())) {
		sendErrorResponse(w, h.logger, "Future date not allowed",
			"Exchange rates are only published for past days", http.StatusUnprocessableEntity, requestID)
		return
	}

	rate, err := h.service.ResolveRate(r.Context(), currency, date)
	if err != nil {
		writeServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RateResponse{
		Currency: currency.String(),
		Date:     date.Format(entity.DateLayout),
		Rate:     rate.String(),
	})
}

// Health reports that the process is serving requests
func (h *RateHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// RegisterRoutes registers the rate handler routes
func (h *RateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rates/{currency}/{date}", h.GetRate).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	h.logger.Info("Rate routes registered", map[string]interface{}{
		"routes": []string{
			"GET /rates/{currency}/{date}",
			"GET /healthz",
		},
	})
}

// writeServiceError maps a service error to its HTTP status
func writeServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	switch {
	case errors.Is(err, entity.ErrRateUnavailable):
		log.Warn("Exchange rate unavailable", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Exchange rate unavailable",
			"Exchange rate unavailable for requested day.", http.StatusNotFound, requestID)
	case errors.Is(err, entity.ErrInvalidRequest):
		log.Warn("Invalid conversion request", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Invalid request", err.Error(), http.StatusUnprocessableEntity, requestID)
	default:
		log.Error("Unexpected error", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Internal server error",
			"An unexpected error occurred. Please try again later.",
			http.StatusInternalServerError, requestID)
	}
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	json.NewEncoder(w).Encode(resp)
}
