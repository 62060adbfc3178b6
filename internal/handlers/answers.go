package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/services"
)

type AnswerHandler struct {
	answers *services.AnswerService
}

func NewAnswerHandler(answers *services.AnswerService) *AnswerHandler {
	return &AnswerHandler{answers: answers}
}

// CreateAnswer posts an answer and notifies the question author.
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		return
	}

	var input models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	answer, err := h.answers.Create(c.Request.Context(), authorID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

// AddComment comments on an answer and notifies the answer author.
func (h *AnswerHandler) AddComment(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		return
	}
	answerID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.answers.AddComment(c.Request.Context(), authorID, answerID, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteAnswer lets the answer's author or an admin remove it.
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	actorID, ok := extractUserID(c)
	if !ok {
		return
	}
	answerID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.answers.Delete(c.Request.Context(), actorID, middleware.Role(c), answerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted"})
}
