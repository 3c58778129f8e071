package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/meme-etl/internal/warehouse"
)

// DocumentResponse is one document as returned by the API.
type DocumentResponse struct {
	ID        uint            `json:"id"`
	LoadID    string          `json:"load_id"`
	ImagePath string          `json:"image_path"`
	CreatedAt time.Time       `json:"created_at"`
	Body      json.RawMessage `json:"body"`
}

func (s *Server) healthHandler(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Printf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "warehouse unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) documentsHandler(c *gin.Context) {
	collection := c.Param("name")
	if err := warehouse.ValidateCollection(collection); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	field, value := c.Query("field"), c.Query("value")
	_, hasValue := c.GetQuery("value")
	if field == "" && hasValue {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value requires field"})
		return
	}
	if field != "" {
		if err := warehouse.ValidateField(field); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docs, err := s.store.Find(c.Request.Context(), collection, field, value, limit)
	if err != nil {
		s.logger.Printf("query %s failed: %v", collection, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = DocumentResponse{
			ID:        d.ID,
			LoadID:    d.LoadID,
			ImagePath: d.ImagePath,
			CreatedAt: d.CreatedAt,
			Body:      json.RawMessage(d.Body),
		}
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection, "count": len(out), "documents": out})
}

func (s *Server) countsHandler(c *gin.Context) {
	collection, field := c.Param("name"), c.Param("field")
	if err := warehouse.ValidateCollection(collection); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := warehouse.ValidateField(field); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	counts, err := s.store.Counts(c.Request.Context(), collection, field)
	if err != nil {
		s.logger.Printf("counts %s.%s failed: %v", collection, field, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection, "field": field, "counts": counts})
}

// parseLimit applies DefaultLimit to an empty value and rejects anything
// outside 1..MaxLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxLimit {
		return 0, errInvalidLimit
	}
	return n, nil
}
