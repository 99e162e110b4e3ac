package rest

import (
	"net/http"

	"github.com/KevinKickass/ParamBridge/internal/auth"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/sync/status
func (s *Server) getSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Sync().Status())
}

// POST /api/v1/sync/reset
func (s *Server) resetSync(c *gin.Context) {
	s.logger.Info("Parameter sync reset requested", zap.String("subject", auth.Subject(c)))
	s.lm.Sync().Reset()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Parameter sync restarted",
		"status":  s.lm.Sync().Status(),
	})
}

// POST /api/v1/sync/refresh
func (s *Server) refreshSync(c *gin.Context) {
	s.lm.Sync().RequestParameterList()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Parameter list requested",
	})
}

// POST /api/v1/sync/restarting
func (s *Server) setRestarting(c *gin.Context) {
	var req struct {
		Restarting *bool `json:"restarting" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SYNC_400", "Invalid request body", err.Error()))
		return
	}

	s.lm.Sync().SetRestarting(*req.Restarting)

	c.JSON(http.StatusOK, gin.H{
		"restarting": *req.Restarting,
	})
}
