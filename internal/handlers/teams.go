package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-broker/internal/repositories"
	"chat-broker/internal/telemetry"
)

// TeamHandler manages the team-membership source consumed by team routing.
type TeamHandler struct {
	teams   repositories.TeamRepository
	emitter *telemetry.AuditEmitter
}

// NewTeamHandler builds a TeamHandler.
func NewTeamHandler(teams repositories.TeamRepository, emitter *telemetry.AuditEmitter) *TeamHandler {
	return &TeamHandler{teams: teams, emitter: emitter}
}

// CreateTeam creates a team.
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.teams.CreateTeam(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create team"})
		return
	}

	c.JSON(http.StatusCreated, team)
}

// AssignMember puts a participant on a team, replacing any prior assignment.
func (h *TeamHandler) AssignMember(c *gin.Context) {
	teamID, err := strconv.Atoi(c.Param("team_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team id"})
		return
	}
	participantID := c.Param("participant_id")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	if err := h.teams.AssignMember(c.Request.Context(), teamID, participantID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrTeamNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not assign member"})
		return
	}

	h.emitter.Emit(c.Request.Context(), "INFO", "team member assigned", requestIDFromContext(c), participantIDFromContext(c))
	c.Status(http.StatusNoContent)
}

// RemoveMember drops a participant's team assignment.
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	participantID := c.Param("participant_id")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	if err := h.teams.RemoveMember(c.Request.Context(), participantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove member"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetTeamOf returns the participant's current team.
func (h *TeamHandler) GetTeamOf(c *gin.Context) {
	participantID := c.Param("participant_id")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	team, err := h.teams.TeamOf(c.Request.Context(), participantID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrTeamNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "team not found"})
		return
	}

	c.JSON(http.StatusOK, team)
}
