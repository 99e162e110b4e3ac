package rest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/mavlink"
	"github.com/KevinKickass/ParamBridge/internal/parameters"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/parameters?search=PILOT
func (s *Server) listParameters(c *gin.Context) {
	snap := s.lm.Sync().Snapshot()

	if search := strings.ToUpper(c.Query("search")); search != "" {
		filtered := make([]types.Parameter, 0, len(snap.Parameters))
		for _, p := range snap.Parameters {
			if strings.Contains(strings.ToUpper(p.Name), search) {
				filtered = append(filtered, p)
			}
		}
		snap.Parameters = filtered
	}
	if snap.Parameters == nil {
		snap.Parameters = []types.Parameter{}
	}

	c.JSON(http.StatusOK, snap)
}

// GET /api/v1/parameters/:name
func (s *Server) getParameter(c *gin.Context) {
	name := c.Param("name")

	p, ok := s.lm.Sync().Parameter(name)
	if !ok {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("PARAM_404", "Parameter not found", name))
		return
	}

	c.JSON(http.StatusOK, p)
}

// PUT /api/v1/parameters/:name
func (s *Server) setParameter(c *gin.Context) {
	name := c.Param("name")

	var req struct {
		Value *float64 `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PARAM_400", "Invalid request body", err.Error()))
		return
	}

	err := s.lm.Sync().SetParameter(c.Request.Context(), name, *req.Value)
	switch {
	case err == nil:
	case errors.Is(err, paramsync.ErrUnknownParameter):
		c.JSON(http.StatusNotFound, types.NewErrorResponse("PARAM_404", "Parameter not found", name))
		return
	case errors.Is(err, paramsync.ErrReadOnly):
		c.JSON(http.StatusConflict, types.NewErrorResponse("PARAM_409", "Parameter is read-only", name))
		return
	case errors.Is(err, paramsync.ErrOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse("PARAM_422", "Value out of range", err.Error()))
		return
	case errors.Is(err, mavlink.ErrNotConnected), errors.Is(err, mavlink.ErrSendBufferFull):
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("PARAM_503", "Vehicle link unavailable", err.Error()))
		return
	default:
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("PARAM_500", "Failed to set parameter", err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Parameter set requested",
		"name":    name,
		"value":   *req.Value,
	})
}

// GET /api/v1/parameters/export?format=yaml
func (s *Server) exportParameters(c *gin.Context) {
	format, err := parameters.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PARAM_400", "Invalid export format", err.Error()))
		return
	}

	snap := s.lm.Sync().Snapshot()
	export := parameters.Export{
		GeneratedAt: time.Now().UTC(),
		SessionID:   snap.SessionID.String(),
		Vehicle:     snap.Identity.String(),
		Complete:    snap.State == paramsync.StateComplete,
		Count:       len(snap.Parameters),
		Parameters:  snap.Parameters,
	}
	if export.Parameters == nil {
		export.Parameters = []types.Parameter{}
	}

	c.Header("Content-Disposition", `attachment; filename="parameters.`+string(format)+`"`)
	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format); err != nil {
		_ = c.Error(err)
	}
}
