package handlers

import (
	"net/http"

	monitoring "monitoring_station"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errAlertNotFound = "alert not found"
	errMissingID     = "missing alert id"
)

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List active alerts
// @Tags         alerts
// @Produce      json
// @Success      200  {array}  monitoring_station.Alert
// @Router       /api/v1/alerts [get]
func (h *Handler) getAlerts(c *gin.Context) {
	alerts := h.services.Alerts.Snapshot()
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	c.JSON(http.StatusOK, alerts)
}

// @Summary      Acknowledge and remove one alert
// @Tags         alerts
// @Produce      json
// @Param        id   path      string  true  "Alert id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alerts/{id} [delete]
func (h *Handler) removeAlert(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingID})
		return
	}
	if !h.services.Alerts.RemoveAlert(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": errAlertNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "id": id})
}

// @Summary      Current mute state
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  monitoring_station.MuteStatus
// @Router       /api/v1/alerts/mute [get]
func (h *Handler) getMuteStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Mute.Status())
}

// @Summary      Toggle the buzzer mute window
// @Description  Muting with no active alerts is a no-op
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  monitoring_station.MuteStatus
// @Router       /api/v1/alerts/mute/toggle [post]
func (h *Handler) toggleMute(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Mute.Toggle())
}

// @Summary      Upstream feed connectivity
// @Tags         system
// @Produce      json
// @Success      200  {object}  monitoring_station.ConnectivityStatus
// @Router       /api/v1/connectivity [get]
func (h *Handler) getConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Connectivity.Status())
}
