package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/podlens/podlens/internal/models"
	"github.com/podlens/podlens/internal/settings"
)

func registerSettingRoutes(api *gin.RouterGroup, opts StartOpts) {
	api.GET("/settings", handleGetSetting(opts))
	api.GET("/settings/history", handleSettingHistory(opts))
	api.PUT("/settings", handlePutSetting(opts))
}

// parseScope reads the shared setting-scope query parameters.
func parseScope(c *gin.Context) (settings.Scope, error) {
	var scope settings.Scope
	var projectID uint
	if _, err := fmt.Sscanf(c.Query("project_id"), "%d", &projectID); err != nil {
		return scope, fmt.Errorf("project_id is required")
	}
	scope.ProjectID = projectID
	scope.ConfigType = c.Query("type")
	scope.ConfigKey = c.Query("key")
	if scope.ConfigType == "" || scope.ConfigKey == "" {
		return scope, fmt.Errorf("type and key are required")
	}
	if raw := c.Query("entity_id"); raw != "" {
		var entityID uint
		if _, err := fmt.Sscanf(raw, "%d", &entityID); err != nil {
			return scope, fmt.Errorf("entity_id must be numeric")
		}
		scope.EntityID = &entityID
	}
	return scope, nil
}

// settingResponse is one setting row with its decoded typed value.
type settingResponse struct {
	Row   *models.Setting `json:"row"`
	Value settings.Value  `json:"value"`
}

func toResponse(row *models.Setting) (*settingResponse, error) {
	if row == nil {
		return nil, nil
	}
	v, err := settings.Decode(row)
	if err != nil {
		return nil, err
	}
	return &settingResponse{Row: row, Value: v}, nil
}

func handleGetSetting(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := parseScope(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var row *models.Setting
		if raw := c.Query("at"); raw != "" {
			at, perr := time.Parse("2006-01-02", raw)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "at must be YYYY-MM-DD"})
				return
			}
			row, err = opts.Settings.GetAt(c.Request.Context(), scope, at)
		} else {
			row, err = opts.Settings.Get(c.Request.Context(), scope)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if row == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no setting for scope"})
			return
		}
		resp, err := toResponse(row)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleSettingHistory(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := parseScope(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rows, err := opts.Settings.History(c.Request.Context(), scope)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// putSettingRequest is the PUT /api/settings body. Value is decoded
// according to ConfigType.
type putSettingRequest struct {
	ProjectID     uint            `json:"project_id"`
	ConfigType    string          `json:"config_type"`
	ConfigKey     string          `json:"config_key"`
	EntityID      *uint           `json:"entity_id"`
	EffectiveFrom string          `json:"effective_from"`
	Value         json.RawMessage `json:"value"`
}

// decodeValue parses the raw payload into the typed variant for configType.
func decodeValue(configType string, raw json.RawMessage) (settings.Value, error) {
	switch configType {
	case models.ConfigTypeAHT:
		var v settings.AHTValue
		return v, json.Unmarshal(raw, &v)
	case models.ConfigTypeTarget:
		var v settings.TargetValue
		return v, json.Unmarshal(raw, &v)
	case models.ConfigTypeWeight:
		var v settings.WeightValue
		return v, json.Unmarshal(raw, &v)
	case models.ConfigTypeThreshold:
		var v settings.ThresholdValue
		return v, json.Unmarshal(raw, &v)
	}
	return nil, fmt.Errorf("unknown config type %q", configType)
}

func handlePutSetting(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req putSettingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.ConfigKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "config_key is required"})
			return
		}
		value, err := decodeValue(req.ConfigType, req.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		effectiveFrom := time.Now()
		if req.EffectiveFrom != "" {
			effectiveFrom, err = time.Parse("2006-01-02", req.EffectiveFrom)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "effective_from must be YYYY-MM-DD"})
				return
			}
		}

		scope := settings.Scope{
			ProjectID:  req.ProjectID,
			ConfigType: req.ConfigType,
			ConfigKey:  req.ConfigKey,
			EntityID:   req.EntityID,
		}
		prev, cur, err := opts.Settings.Set(c.Request.Context(), scope, value, effectiveFrom)
		if err != nil {
			if errors.Is(err, settings.ErrConflict) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		prevResp, err := toResponse(prev)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		curResp, err := toResponse(cur)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"previous": prevResp, "current": curResp})
	}
}
