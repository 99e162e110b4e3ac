package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/KevinKickass/ParamBridge/internal/storage"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/v1/snapshots?limit=20
func (s *Server) listSnapshots(c *gin.Context) {
	store := s.lm.Snapshots()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("SNAPSHOT_503", "Snapshot storage is disabled", nil))
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("SNAPSHOT_400", "Invalid limit", raw))
			return
		}
		limit = n
	}

	summaries, err := store.ListSnapshots(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("SNAPSHOT_500", "Failed to list snapshots", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": summaries,
		"count":     len(summaries),
	})
}

// GET /api/v1/snapshots/:id
func (s *Server) getSnapshot(c *gin.Context) {
	store := s.lm.Snapshots()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("SNAPSHOT_503", "Snapshot storage is disabled", nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SNAPSHOT_400", "Invalid snapshot id", c.Param("id")))
		return
	}

	snap, err := store.LoadSnapshot(c.Request.Context(), id)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("SNAPSHOT_404", "Snapshot not found", id.String()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("SNAPSHOT_500", "Failed to load snapshot", err.Error()))
		return
	}

	c.JSON(http.StatusOK, snap)
}
