package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"moonhollow/internal/game"
)

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": game.ErrNotFound.Error()})
	case game.IsValidation(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("request failed path=%s error=%v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

type sessionURI struct {
	ID string `uri:"id" binding:"required"`
}

// settingsPatch carries the optional settings fields shared by session
// creation and the lobby settings update; nil fields keep the current
// value.
type settingsPatch struct {
	NightSeconds      *int  `json:"night_seconds" binding:"omitempty,min=10,max=600"`
	DiscussionSeconds *int  `json:"discussion_seconds" binding:"omitempty,min=10,max=3600"`
	VoteSeconds       *int  `json:"vote_seconds" binding:"omitempty,min=10,max=600"`
	MaxPlayers        *int  `json:"max_players" binding:"omitempty,min=5,max=18"`
	NarrationEnabled  *bool `json:"narration_enabled"`
	Seer              *bool `json:"seer"`
	Witch             *bool `json:"witch"`
	Hunter            *bool `json:"hunter"`
}

func (p settingsPatch) apply(settings *game.Settings) {
	if p.NightSeconds != nil {
		settings.NightSeconds = *p.NightSeconds
	}
	if p.DiscussionSeconds != nil {
		settings.DiscussionSeconds = *p.DiscussionSeconds
	}
	if p.VoteSeconds != nil {
		settings.VoteSeconds = *p.VoteSeconds
	}
	if p.MaxPlayers != nil {
		settings.MaxPlayers = *p.MaxPlayers
	}
	if p.NarrationEnabled != nil {
		settings.NarrationEnabled = *p.NarrationEnabled
	}
	if p.Seer != nil {
		settings.Roles.Seer = *p.Seer
	}
	if p.Witch != nil {
		settings.Roles.Witch = *p.Witch
	}
	if p.Hunter != nil {
		settings.Roles.Hunter = *p.Hunter
	}
}

type createSessionRequest struct {
	settingsPatch
}

func (s *Server) defaultSettings() game.Settings {
	settings := game.DefaultSettings()
	settings.NightSeconds = s.cfg.NightSeconds
	settings.DiscussionSeconds = s.cfg.DiscussionSeconds
	settings.VoteSeconds = s.cfg.VoteSeconds
	settings.NarrationEnabled = s.cfg.OpenAIAPIKey != ""
	return settings
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req, nil, "invalid session settings") {
			return
		}
	}
	settings := s.defaultSettings()
	req.apply(&settings)

	session, err := s.engine.CreateSession(c.Request.Context(), settings)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"code":       session.Code,
	})
}

type updateSettingsRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	settingsPatch
}

// handleUpdateSettings lets the host tune a lobby before the game
// starts. Each patch merges into the session's current settings, so
// omitted fields keep their value.
func (s *Server) handleUpdateSettings(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req updateSettingsRequest
	if !bindJSON(c, &req, nil, "invalid session settings") {
		return
	}
	session, err := s.store.SessionByID(c.Request.Context(), uri.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	settings := session.Settings
	req.apply(&settings)
	if err := s.engine.UpdateSettings(c.Request.Context(), uri.ID, req.ParticipantID, settings); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type joinSessionRequest struct {
	Code string `json:"code" binding:"required,joincode"`
	Name string `json:"name" binding:"required,playername"`
}

var joinMessages = bindMessages{
	"Code": {
		"required": "join code is required",
		"joincode": "join code must be six letters or digits",
	},
	"Name": {
		"required":   "name is required",
		"playername": "name must be 20 safe characters or fewer",
	},
}

func (s *Server) handleJoinSession(c *gin.Context) {
	var req joinSessionRequest
	if !bindJSON(c, &req, joinMessages, "invalid join request") {
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, participant, err := s.engine.JoinSession(c.Request.Context(), req.Code, name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":     session.ID,
		"participant_id": participant.ID,
		"is_host":        participant.IsHost,
	})
}

type participantRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

func (s *Server) handleLeaveSession(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req participantRequest
	if !bindJSON(c, &req, nil, "participant_id is required") {
		return
	}
	if err := s.engine.LeaveSession(c.Request.Context(), uri.ID, req.ParticipantID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleReady(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req participantRequest
	if !bindJSON(c, &req, nil, "participant_id is required") {
		return
	}
	if err := s.engine.SetReady(c.Request.Context(), uri.ID, req.ParticipantID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleStartSession(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req participantRequest
	if !bindJSON(c, &req, nil, "participant_id is required") {
		return
	}
	if err := s.engine.StartSession(c.Request.Context(), uri.ID, req.ParticipantID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRestartSession(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req participantRequest
	if !bindJSON(c, &req, nil, "participant_id is required") {
		return
	}
	if err := s.engine.RestartSession(c.Request.Context(), uri.ID, req.ParticipantID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleNarrationDone is how clients report that the intro narration has
// played out: night_intro proceeds to the night, day_intro to the
// discussion. A report that arrives after the phase already moved on is
// an ordinary duplicate, so any other phase answers ok without touching
// the session.
func (s *Server) handleNarrationDone(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	session, err := s.store.SessionByID(c.Request.Context(), uri.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	switch session.Phase {
	case game.PhaseNightIntro:
		err = s.engine.StartNight(c.Request.Context(), uri.ID)
	case game.PhaseDayIntro:
		err = s.engine.StartDay(c.Request.Context(), uri.ID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type voteRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	TargetID      string `json:"target_id" binding:"required"`
}

func (s *Server) handleVote(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req voteRequest
	if !bindJSON(c, &req, nil, "participant_id and target_id are required") {
		return
	}
	result, err := s.engine.SubmitVote(c.Request.Context(), uri.ID, req.ParticipantID, req.TargetID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": result.Duplicate})
}

type nightActionRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	ActionType    string `json:"action_type" binding:"required"`
	TargetID      string `json:"target_id"`
}

func (s *Server) handleNightAction(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req nightActionRequest
	if !bindJSON(c, &req, nil, "participant_id and action_type are required") {
		return
	}
	result, err := s.engine.SubmitNightAction(c.Request.Context(), uri.ID,
		req.ParticipantID, game.ActionType(req.ActionType), req.TargetID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	resp := gin.H{"ok": true, "duplicate": result.Duplicate}
	if result.RevealedRole != "" {
		resp["revealed_role"] = string(result.RevealedRole)
	}
	c.JSON(http.StatusOK, resp)
}

type lastActRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	TargetID      string `json:"target_id"`
}

func (s *Server) handleLastAct(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	var req lastActRequest
	if !bindJSON(c, &req, nil, "participant_id is required") {
		return
	}
	result, err := s.engine.SubmitLastAct(c.Request.Context(), uri.ID, req.ParticipantID, req.TargetID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": result.Duplicate})
}

// handleSweep forces an immediate timeout check for one session, so a
// polling client does not have to wait for the next ticker pass.
func (s *Server) handleSweep(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.Sweep(c.Request.Context(), uri.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteOrphan(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.DeleteOrphan(c.Request.Context(), uri.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetSession(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	viewerID := c.Query("participant_id")
	session, err := s.store.SessionByID(c.Request.Context(), uri.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	participants, err := s.store.Participants(c.Request.Context(), uri.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot(session, participants, viewerID))
}
