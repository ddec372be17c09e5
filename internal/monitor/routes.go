package monitor

import (
	"net/http"
	"time"

	"github.com/MewKitBit/Solaris/internal/sim"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": appName,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":     true,
			"uptime":    time.Since(s.appeared).String(),
			"component": appName,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")

	api.GET("/farm", func(c *gin.Context) {
		coll := s.runner.Collection()
		units := coll.Snapshot()
		outputs := make([]float64, 0, len(units))
		for _, u := range units {
			outputs = append(outputs, u.OutputWatts)
		}
		c.JSON(http.StatusOK, gin.H{
			"units":    units,
			"count":    len(units),
			"replaced": coll.ReplacedCount(),
			"retired":  coll.RetiredIDs(),
			"stats":    sim.ComputeOutputStats(outputs),
		})
	})

	api.GET("/units", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"units": s.runner.Collection().Snapshot(),
		})
	})

	api.GET("/units/:id", func(c *gin.Context) {
		snap, err := s.runner.Collection().Unit(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unit not found"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	api.GET("/run", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.runner.Status())
	})
}
