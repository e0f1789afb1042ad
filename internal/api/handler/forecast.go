package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/api/response"
	"github.com/greenyield/greenyield/internal/forecast"
)

const maxBodyBytes = 64 << 10

// ForecastHandler handles forecast endpoints.
type ForecastHandler struct {
	service *forecast.Service
	log     zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(service *forecast.Service, log zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{service: service, log: log}
}

// Preview handles POST /v1/forecasts:preview - compute without storing.
func (h *ForecastHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastRequest
	if !decodeBody(w, r, &req) {
		return
	}

	preview, err := h.service.Preview(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, preview)
}

// FromWeather handles POST /v1/forecasts:fromWeather - preview from current
// outdoor conditions at the greenhouse.
func (h *ForecastHandler) FromWeather(w http.ResponseWriter, r *http.Request) {
	var req models.WeatherForecastRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.FromWeather(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// CreateForecast handles POST /v1/forecasts - compute and store.
func (h *ForecastHandler) CreateForecast(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), GetGrowerID(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, r, "/v1/forecasts/"+created.ID, created)
}

// ListForecasts handles GET /v1/forecasts?limit=&cursor= - newest first.
func (h *ForecastHandler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > forecast.MaxListLimit {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{{
				Field:   "limit",
				Message: "must be an integer between 1 and " + strconv.Itoa(forecast.MaxListLimit),
				Code:    models.CodeOutOfRange,
			}})
			return
		}
		limit = n
	}

	page, err := h.service.List(r.Context(), GetGrowerID(r.Context()), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

// GetForecast handles GET /v1/forecasts/{forecastId}.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Get(r.Context(), GetGrowerID(r.Context()), chi.URLParam(r, "forecastId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, f)
}

// DeleteForecast handles DELETE /v1/forecasts/{forecastId}.
func (h *ForecastHandler) DeleteForecast(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), GetGrowerID(r.Context()), chi.URLParam(r, "forecastId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// writeError maps service errors onto problem responses.
func (h *ForecastHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *forecast.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "request validation failed", validationErr.Errors)
	case errors.Is(err, forecast.ErrInvalidCursor):
		response.BadRequest(w, r, "invalid query parameter", []models.FieldError{{
			Field:   "cursor",
			Message: "does not refer to a forecast on this list",
			Code:    models.CodeInvalidCursor,
		}})
	case errors.Is(err, forecast.ErrForecastNotFound):
		response.NotFound(w, r, "forecast not found")
	case errors.Is(err, forecast.ErrWeatherUnavailable):
		h.log.Warn().Err(err).Str("path", r.URL.Path).Msg("weather unavailable")
		response.ServiceUnavailable(w, r, "current weather is unavailable, provide temperature and humidity instead")
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("forecast request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// decodeBody decodes a JSON body, rejecting unknown fields and trailing data.
// It writes the 400 itself and reports false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	if dec.More() {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	return true
}
