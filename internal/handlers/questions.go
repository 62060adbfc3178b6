package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/services"
)

type QuestionHandler struct {
	questions  *services.QuestionService
	acceptance *services.AcceptanceService
}

func NewQuestionHandler(questions *services.QuestionService, acceptance *services.AcceptanceService) *QuestionHandler {
	return &QuestionHandler{questions: questions, acceptance: acceptance}
}

// CreateQuestion creates a new question (PROTECTED - requires authentication)
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		return
	}

	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	question, err := h.questions.Create(c.Request.Context(), authorID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

// GetQuestion returns a question with its answers. Anonymous viewers get no
// user_vote and still count as a view.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	viewerID, _ := middleware.UserID(c)

	detail, err := h.questions.Get(c.Request.Context(), id, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *QuestionHandler) ListAnswers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	answers, page, err := h.questions.ListAnswers(c.Request.Context(), id, queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers, "pagination": page})
}

// AcceptAnswer handles POST /questions/:id/accept with {answer_id}.
func (h *QuestionHandler) AcceptAnswer(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input models.AcceptAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	input.QuestionID = questionID
	h.accept(c, input)
}

// AcceptAnswerByBody handles POST /questions/accept-answer with both ids in the body.
func (h *QuestionHandler) AcceptAnswerByBody(c *gin.Context) {
	var input models.AcceptAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if input.QuestionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_id is required"})
		return
	}
	h.accept(c, input)
}

func (h *QuestionHandler) accept(c *gin.Context, input models.AcceptAnswerRequest) {
	actorID, ok := extractUserID(c)
	if !ok {
		return
	}

	question, err := h.acceptance.AcceptAnswer(c.Request.Context(), actorID, input.QuestionID, input.AnswerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Answer accepted",
		"question": question,
	})
}
