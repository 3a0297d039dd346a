package app

import (
	"time"

	"equipment_usage_tracker/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func useCORS(r *gin.Engine, cfg *config.Config) {
	origins := make([]string, 0, len(cfg.CORSOrigins)+1)
	if cfg.WebOrigin != "" {
		origins = append(origins, cfg.WebOrigin)
	}
	origins = append(origins, cfg.CORSOrigins...)
	if len(origins) == 0 {
		return
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", HeaderActor, HeaderRequestID},
		ExposeHeaders:    []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
