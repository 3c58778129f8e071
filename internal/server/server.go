package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/meme-etl/internal/warehouse"
)

// Query limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Server holds the handlers' dependencies.
type Server struct {
	store  warehouse.Querier
	logger *log.Logger
}

// New returns a gin engine serving the query API over store.
func New(store warehouse.Querier) *gin.Engine {
	return NewWithLogger(store, nil)
}

// NewWithLogger is New with an explicit logger for query failures. Nil uses
// log.Default().
func NewWithLogger(store warehouse.Querier, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{store: store, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	if gin.Mode() != gin.TestMode {
		r.Use(gin.Logger())
	}
	s.setupRoutes(r)
	return r
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/healthz", s.healthHandler)
	collections := r.Group("/collections/:name")
	collections.GET("/documents", s.documentsHandler)
	collections.GET("/counts/:field", s.countsHandler)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
