package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"rekord/internal/dsl"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Module string   `json:"module"`
	Entity string   `json:"entity"`
	Forms  []string `json:"forms"`
}

func (s *Server) MetaListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cat := s.records.Catalog()
		out := make([]metaEntityListItem, 0, len(cat))
		for fqn, e := range cat {
			mod, ent := splitFQN(fqn)
			item := metaEntityListItem{Module: mod, Entity: ent, Forms: make([]string, 0, len(e.Forms))}
			for _, f := range e.Forms {
				item.Forms = append(item.Forms, f.Name)
			}
			out = append(out, item)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Module != out[j].Module {
				return out[i].Module < out[j].Module
			}
			return out[i].Entity < out[j].Entity
		})
		c.JSON(http.StatusOK, out)
	}
}

type metaForm struct {
	Entity string      `json:"entity"`
	Form   string      `json:"form"`
	Fields []dsl.Field `json:"fields"`
}

func (s *Server) MetaFormHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ent, form := c.Param("entity"), c.Param("form")
		fields, ok := s.records.Catalog().Form(ent, form)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
			return
		}
		c.JSON(http.StatusOK, metaForm{Entity: strings.ToLower(ent), Form: form, Fields: fields})
	}
}

// GET /api/reference/:name — элементы справочника опций.
func (s *Server) ReferenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		s.mu.RLock()
		dir, ok := s.enums[name]
		s.mu.RUnlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":  name,
			"items": dir.Items,
			"codes": dir.Codes(),
		})
	}
}

// splitFQN("module.entity") -> ("module","entity")
func splitFQN(fqn string) (string, string) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}
