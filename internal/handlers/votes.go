package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/services"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// Vote handles POST /votes/:type/:id. Repeating the same direction retracts
// the vote; the opposite direction flips it.
func (h *VoteHandler) Vote(c *gin.Context) {
	voterID, ok := extractUserID(c)
	if !ok {
		return
	}

	targetType := models.TargetType(c.Param("type"))
	if !targetType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote target, expected question or answer"})
		return
	}
	targetID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	dir, err := models.ParseDirection(input.VoteType)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.votes.CastVote(c.Request.Context(), voterID, targetType, targetID, dir)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
