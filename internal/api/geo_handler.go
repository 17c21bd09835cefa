package api

import (
	"errors"
	"fmt"
	"net/http"

	"epiwatch/role-portal/internal/service"

	"github.com/gin-gonic/gin"
)

// GeoHandler exposes the reverse-geocoding endpoint consumed by the
// client-side location resolver.
type GeoHandler struct {
	geoService service.GeoService
}

// NewGeoHandler creates a new GeoHandler.
func NewGeoHandler(geoService service.GeoService) *GeoHandler {
	return &GeoHandler{geoService: geoService}
}

type LocationRequest struct {
	Lat  *float64 `json:"lat" binding:"required"`
	Long *float64 `json:"long" binding:"required"`
}

type LocationResponse struct {
	Location string `json:"location"`
}

// Resolve turns a coordinate pair into a human-readable place name.
// The endpoint is bearer-optional: anonymous sessions may resolve too.
func (h *GeoHandler) Resolve(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	place, err := h.geoService.ResolvePlace(c.Request.Context(), *req.Lat, *req.Long)
	if err != nil {
		if errors.Is(err, service.ErrGeocodeUnavailable) {
			abortWithMessage(c, http.StatusBadGateway, err.Error())
			return
		}
		abortWithMessage(c, http.StatusInternalServerError, "failed to resolve location")
		return
	}

	c.JSON(http.StatusOK, LocationResponse{Location: place})
}
