package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/filetype"
)

func (s *server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.Env,
		"database":    "memory",
		"redis":       "disabled",
	}
	if s.Store != nil {
		body["database"] = "Connected"
		if !s.Store.Healthy(ctx) {
			body["database"] = "Disconnected"
			body["status"] = "DEGRADED"
			status = http.StatusServiceUnavailable
		}
	}
	if s.Redis != nil {
		body["redis"] = "Connected"
		if !s.Redis.Healthy(ctx) {
			body["redis"] = "Disconnected"
		}
	}
	c.JSON(status, body)
}

func (s *server) serveUpload(c *gin.Context) {
	if s.Files == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	full, err := s.Files.Resolve(c.Param("path"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Type", filetype.MIMEType(full))
	c.File(full)
}
