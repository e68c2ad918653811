// Package http is the local control plane a view layer drives the room
// session through. It carries no authority of its own; room state lives
// only in the shared store.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/kdanilin/jamroom/internal/config"
	"github.com/rs/zerolog/log"
)

func SetupRouter(cfg *config.Config, ctl *Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.POST("/rooms", ctl.handleCreateRoom)
	api.POST("/rooms/:code/join", ctl.handleJoinRoom)
	api.GET("/rooms/:code", ctl.handleGetRoom)

	api.GET("/session", ctl.handleSessionState)
	api.POST("/session/tracks", ctl.handleAddTrack)
	api.POST("/session/play", ctl.handlePlay)
	api.POST("/session/toggle", ctl.handleToggle)
	api.POST("/session/leave", ctl.handleLeave)

	api.GET("/ws/state", ctl.handleStateWS)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
