package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rekord/internal/ingest"
	"rekord/internal/service"
	"rekord/internal/store"
)

// POST /api/:entity/:form
func (s *Server) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		view, err := s.records.Create(c.Request.Context(), c.Param("entity"), c.Param("form"), obj)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, view)
	}
}

// GET /api/:entity/:id
func (s *Server) GetOneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		view, err := s.records.Get(c.Request.Context(), c.Param("entity"), id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// PATCH /api/:entity/:id/:form
func (s *Server) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		upd, err := s.records.Update(c.Request.Context(), c.Param("entity"), id, c.Param("form"), obj)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, upd)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// writeError переводит ошибки сервиса в HTTP-ответ.
func (s *Server) writeError(c *gin.Context, err error) {
	var rej *ingest.Rejection
	switch {
	case errors.As(err, &rej):
		c.JSON(rej.Status, rej)
	case errors.Is(err, service.ErrUnknownEntity):
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
	case errors.Is(err, service.ErrUnknownForm):
		c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict"})
	default:
		s.logger.Error("request failed", "request_id", requestID(c), "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
