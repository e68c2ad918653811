package http

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kdanilin/jamroom/internal/app"
	"github.com/kdanilin/jamroom/internal/core"
	"github.com/kdanilin/jamroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Controller wires the local view onto one room session per client
// process, one participant each.
type Controller struct {
	rooms   *app.RoomService
	storage core.Storage
	player  core.Player
	clock   *core.Clock
	poll    time.Duration

	mu      sync.Mutex
	session *app.Session

	conns *statePool
}

func NewController(storage core.Storage, player core.Player, clock *core.Clock, poll time.Duration) *Controller {
	return &Controller{
		rooms:   app.NewRoomService(storage, clock),
		storage: storage,
		player:  player,
		clock:   clock,
		poll:    poll,
		conns:   newStatePool(),
	}
}

type createRoomRequest struct {
	RoomName string `json:"roomName"`
	UserName string `json:"userName"`
}

type joinRoomRequest struct {
	UserName string `json:"userName"`
}

type addTrackRequest struct {
	Name      string  `json:"name"`
	SourceRef string  `json:"sourceRef"`
	MediaType string  `json:"mediaType"`
	Duration  float64 `json:"duration"`
}

type playRequest struct {
	TrackID string `json:"trackId"`
}

func (ctl *Controller) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := ctl.rooms.Create(req.RoomName, req.UserName)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := ctl.openSession(rec.RoomCode); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (ctl *Controller) handleJoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec, err := ctl.rooms.Join(c.Param("code"), req.UserName)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := ctl.openSession(rec.RoomCode); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (ctl *Controller) handleGetRoom(c *gin.Context) {
	rec, err := ctl.rooms.Store().Read(domain.RoomCode(c.Param("code")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (ctl *Controller) handleSessionState(c *gin.Context) {
	sess := ctl.currentSession()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sess.State(), "room": sess.Snapshot()})
}

func (ctl *Controller) handleAddTrack(c *gin.Context) {
	sess := ctl.currentSession()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	var req addTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	track, err := sess.AddTrack(req.Name, req.SourceRef, req.MediaType, req.Duration)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, track)
}

func (ctl *Controller) handlePlay(c *gin.Context) {
	sess := ctl.currentSession()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := sess.SetCurrentAndPlay(domain.TrackID(req.TrackID)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (ctl *Controller) handleToggle(c *gin.Context) {
	sess := ctl.currentSession()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	if err := sess.TogglePlayPause(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (ctl *Controller) handleLeave(c *gin.Context) {
	ctl.mu.Lock()
	sess := ctl.session
	ctl.session = nil
	ctl.mu.Unlock()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	if err := sess.Leave(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) currentSession() *app.Session {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.session
}

func (ctl *Controller) openSession(code domain.RoomCode) error {
	ctl.mu.Lock()
	old := ctl.session
	ctl.mu.Unlock()
	if old != nil {
		_ = old.Leave()
	}

	sess, err := app.OpenSession(ctl.storage, ctl.player, ctl.clock, code)
	if err != nil {
		return err
	}
	sess.OnState(ctl.conns.broadcast)
	if err := sess.Start(ctl.poll); err != nil {
		return err
	}

	ctl.mu.Lock()
	ctl.session = sess
	ctl.mu.Unlock()
	log.Info().Str("module", "adapters.http").Str("room", string(code)).Msg("session opened")
	return nil
}

// Close tears down the active session, if any.
func (ctl *Controller) Close() {
	ctl.mu.Lock()
	sess := ctl.session
	ctl.session = nil
	ctl.mu.Unlock()
	if sess != nil {
		_ = sess.Leave()
	}
	ctl.conns.closeAll()
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTrack),
		errors.Is(err, domain.ErrTrackNotFound),
		errors.Is(err, domain.ErrNameEmpty),
		errors.Is(err, domain.ErrNameTooLong),
		errors.Is(err, app.ErrRoomNameEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUserNotSet), errors.Is(err, domain.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPlaybackFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
