package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/api/response"
	"github.com/greenyield/greenyield/internal/crop"
)

// CropHandler serves the crop knowledge table.
type CropHandler struct {
	table *crop.Table
}

// NewCropHandler creates a new CropHandler.
func NewCropHandler(table *crop.Table) *CropHandler {
	return &CropHandler{table: table}
}

// ListCrops handles GET /v1/crops - the crops growers can select.
func (h *CropHandler) ListCrops(w http.ResponseWriter, r *http.Request) {
	selectable := h.table.Selectable()
	items := make([]models.CropProfile, 0, len(selectable))
	for _, p := range selectable {
		items = append(items, toCropProfile(p))
	}
	response.JSON(w, r, http.StatusOK, models.CropList{Items: items})
}

// GetCrop handles GET /v1/crops/{cropId}. Unknown ids resolve to the
// default profile, flagged with isDefault.
func (h *CropHandler) GetCrop(w http.ResponseWriter, r *http.Request) {
	cropID := chi.URLParam(r, "cropId")
	if cropID == "" {
		response.BadRequest(w, r, "cropId is required", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, toCropProfile(h.table.Lookup(cropID)))
}

func toCropProfile(p crop.Profile) models.CropProfile {
	return models.CropProfile{
		ID:                     p.ID,
		Name:                   p.Name,
		BaseYieldDensity:       p.BaseYieldDensity,
		VarianceCoefficient:    p.VarianceCoefficient,
		OptimalTemperatureC:    models.Range{Min: p.OptimalTemperature.Min, Max: p.OptimalTemperature.Max},
		OptimalHumidityPercent: models.Range{Min: p.OptimalHumidity.Min, Max: p.OptimalHumidity.Max},
		IsDefault:              p.IsDefault(),
	}
}
