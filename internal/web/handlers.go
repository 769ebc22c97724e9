// internal/web/handlers.go
package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lanmap/internal/database"
	"lanmap/internal/discovery"
)

func (s *Server) startSweep(c *gin.Context) {
	if err := s.engine.StartSweep(); err != nil {
		if err == discovery.ErrAlreadyRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "Discovery already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start discovery"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": s.engine.GetStatus()})
}

func (s *Server) startRefresh(c *gin.Context) {
	if err := s.engine.StartRefresh(); err != nil {
		if err == discovery.ErrAlreadyRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "Discovery already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start discovery"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": s.engine.GetStatus()})
}

func (s *Server) getDiscoveryStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.engine.GetStatus()})
}

func (s *Server) getDevices(table database.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := database.DeviceFilters{
			Type:   c.Query("type"),
			Sector: c.Query("sector"),
		}
		if statusStr := c.Query("status"); statusStr != "" {
			status, err := strconv.Atoi(statusStr)
			if err != nil || (status != 0 && status != 1) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "status must be 0 or 1"})
				return
			}
			filters.Status = &status
		}

		devices, err := s.store.GetDevices(c.Request.Context(), table, filters)
		if err != nil {
			logrus.WithError(err).Error("Failed to get devices")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get devices"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":  devices,
			"count": len(devices),
		})
	}
}

func (s *Server) getDevice(table database.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device id"})
			return
		}

		device, err := s.store.GetDevice(c.Request.Context(), table, id)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get device"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": device})
	}
}

// deviceUpdateRequest carries the operator-editable fields. Only fields
// present in the request body are written.
type deviceUpdateRequest struct {
	Name   *string `json:"name"`
	Type   *string `json:"type"`
	User   *string `json:"user"`
	Sector *string `json:"sector"`
}

func (s *Server) updateDevice(table database.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device id"})
			return
		}

		var req deviceUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var (
			sets []string
			args []interface{}
		)
		for _, field := range []struct {
			column string
			value  *string
		}{
			{"name", req.Name},
			{"type", req.Type},
			{"user", req.User},
			{"sector", req.Sector},
		} {
			if field.value != nil {
				sets = append(sets, "\""+field.column+"\" = ?")
				args = append(args, *field.value)
			}
		}
		if len(sets) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
			return
		}

		query := "UPDATE " + string(table) + " SET " + strings.Join(sets, ", ") +
			", updated_at = CURRENT_TIMESTAMP WHERE id = ?"
		args = append(args, id)

		result := s.store.Execute(c.Request.Context(), query, args...)
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}

		device, err := s.store.GetDevice(c.Request.Context(), table, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload device"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": device})
	}
}

func (s *Server) getPingHistory(c *gin.Context) {
	ip := c.Param("ip")

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	history, err := s.store.GetPingHistory(c.Request.Context(), ip, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to get ping history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get ping history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  history,
		"count": len(history),
	})
}

// editableSettings is the allow-list for the settings API. Unknown keys are
// rejected rather than silently stored.
var editableSettings = map[string]bool{
	database.SettingDiscoveryInterval:    true,
	database.SettingPingTimeout:          true,
	database.SettingBatchSize:            true,
	database.SettingAutoDiscoveryEnabled: true,
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to get settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) updateSetting(c *gin.Context) {
	key := c.Param("key")
	if !editableSettings[key] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown setting: " + key})
		return
	}

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.SetSetting(c.Request.Context(), key, req.Value); err != nil {
		logrus.WithError(err).Error("Failed to update setting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{key: req.Value}})
}
