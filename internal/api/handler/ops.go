// Package handler provides HTTP handlers for the greenyield API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/api/response"
	"github.com/greenyield/greenyield/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderHealthSource lists the health of external providers.
type ProviderHealthSource interface {
	Snapshot() []*resilience.ProviderHealth
}

// OpsConfig configures the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Storage is pinged by the readiness check.
	Storage Pinger

	// Providers may be nil when no external provider is configured.
	Providers ProviderHealthSource
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	storage   Pinger
	providers ProviderHealthSource
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		storage:   cfg.Storage,
		providers: cfg.Providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - 503 until storage answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	storage := h.storageStatus(r.Context())
	status := http.StatusOK
	if storage.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}

	response.JSON(w, r, status, models.Health{
		Status:  storage.Status,
		Time:    models.Timestamp(time.Now()),
		Details: map[string]interface{}{"storage": storage.Status},
	})
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	storage := h.storageStatus(r.Context())

	providers := []models.ProviderStatus{}
	if h.providers != nil {
		for _, p := range h.providers.Snapshot() {
			providers = append(providers, toProviderStatus(p))
		}
	}

	overall := storage.Status
	for _, p := range providers {
		if overall == models.HealthStatusOK && p.Status != models.HealthStatusOK {
			overall = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{storage},
		Providers:  providers,
	})
}

func (h *OpsHandler) storageStatus(ctx context.Context) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "storage", Status: models.HealthStatusOK}
	if h.storage == nil {
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := h.storage.Ping(ctx); err != nil {
		detail := err.Error()
		s.Status = models.HealthStatusFail
		s.Detail = &detail
	}
	return s
}

func toProviderStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider: p.Name,
		Status:   models.HealthStatusOK,
	}
	switch {
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	case !p.IsHealthy():
		ps.Status = models.HealthStatusFail
	}
	if p.LastSuccessAt != nil {
		ts := models.Timestamp(*p.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if p.LastFailureAt != nil {
		ts := models.Timestamp(*p.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}
