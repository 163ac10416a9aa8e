package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rekord/internal/catalog"
	"rekord/internal/dsl"
)

// POST /api/admin/reload
// Тело необязательно: {"dsl_root": "...", "enums_root": "...", "roles_path": "..."}.
func (s *Server) AdminReloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req catalog.Sources
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		src := req.Merge(s.sources)

		// 1) читаем и проверяем новый каталог
		b, err := catalog.Load(src)
		if errors.Is(err, catalog.ErrBlocking) {
			s.metrics.IncrementReload("blocked")
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "schema has blocking issues",
				"issues":  dsl.Blocking(b.Issues),
				"hint":    "fix DSL and retry",
				"dslRoot": src.DSLDir, "enumsRoot": src.EnumsDir,
			})
			return
		}
		if err != nil {
			s.metrics.IncrementReload("failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Catalog load error", "details": err.Error()})
			return
		}

		// 2) атомарная замена
		s.records.Reload(b.Forms, b.Roles)
		s.mu.Lock()
		s.enums = b.Enums
		s.mu.Unlock()
		s.metrics.IncrementReload("ok")
		s.logger.Info("catalog reloaded", "request_id", requestID(c), "entities", len(b.Forms), "enums", len(b.Enums), "warnings", len(b.Issues))

		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"dslRoot":    src.DSLDir,
			"enumsRoot":  src.EnumsDir,
			"entities":   len(b.Forms),
			"enumGroups": len(b.Enums),
			"warnings":   b.Issues,
		})
	}
}
