package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prepium/ieltsprep-backend/internal/middleware"
	"github.com/prepium/ieltsprep-backend/internal/model"
	"github.com/prepium/ieltsprep-backend/internal/response"
	"github.com/prepium/ieltsprep-backend/internal/service"
	"github.com/prepium/ieltsprep-backend/internal/session"
	"github.com/prepium/ieltsprep-backend/internal/validator"
)

// AttemptHandler serves the attempt lifecycle over HTTP. Every endpoint is
// also reachable over the WebSocket stream; HTTP is the fallback for clients
// without a socket and for one-shot calls like start and state recovery.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Joins or resumes the student's attempt for the exam.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetState godoc
// GET /api/v1/student/attempts/:attempt_id/state
// Returns the recovery snapshot for page reload.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SaveAnswer godoc
// POST /api/v1/student/attempts/:attempt_id/answers/:question_id
// Stores an answer; an empty answer clears it.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, claims.UserID, questionID, req.Answer); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// DeleteAnswer godoc
// DELETE /api/v1/student/attempts/:attempt_id/answers/:question_id
// Clears an answer. Equivalent to saving an empty value.
func (h *AttemptHandler) DeleteAnswer(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, claims.UserID, questionID, model.AnswerValue{}); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ToggleFlag godoc
// POST /api/v1/student/attempts/:attempt_id/flags/:question_id
// Flips the review flag and returns the new state.
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	flagged, err := h.attemptService.ToggleFlag(attemptID, claims.UserID, questionID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"flagged": flagged})
}

// Navigate godoc
// POST /api/v1/student/attempts/:attempt_id/navigate
// Moves the current position to a question.
func (h *AttemptHandler) Navigate(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.Navigate(attemptID, claims.UserID, req.QuestionID); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current": req.QuestionID})
}

// AudioReady godoc
// POST /api/v1/student/attempts/:attempt_id/sections/:section_id/audio/ready
// Consumes one listen from the section's allowance.
func (h *AttemptHandler) AudioReady(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}
	sectionID, err := uuid.Parse(c.Param("section_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	count, err := h.attemptService.AudioReady(c.Request.Context(), attemptID, claims.UserID, sectionID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"play_count": count})
}

// AudioFailed godoc
// POST /api/v1/student/attempts/:attempt_id/sections/:section_id/audio/failed
// Records a playback failure without charging the allowance.
func (h *AttemptHandler) AudioFailed(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}
	sectionID, err := uuid.Parse(c.Param("section_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.PlaybackFailureRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.AudioFailed(attemptID, claims.UserID, sectionID, req.Reason); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recorded": true})
}

// StartReview godoc
// POST /api/v1/student/attempts/:attempt_id/review
// Enters the fixed review window.
func (h *AttemptHandler) StartReview(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}

	if err := h.attemptService.StartReview(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"phase": session.PhaseReview})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Finalizes the attempt. Safe to retry after a failure; duplicate submits of
// a completed attempt return ATTEMPT_COMPLETED.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims, attemptID, ok := h.auth(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		status, code := domainErrCode(err)
		if code == response.ErrInternal {
			// The session reverted its phase; tell the client to retry.
			status, code = http.StatusBadGateway, response.ErrSubmitFailed
		}
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// auth extracts the JWT claims and the attempt ID path param.
func (h *AttemptHandler) auth(c *gin.Context) (*middleware.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, attemptID, true
}

// failDomain translates service and session errors into the typed error
// envelope. Unrecognized errors become 500 INTERNAL_ERROR.
func failDomain(c *gin.Context, err error) {
	status, code := domainErrCode(err)
	response.Fail(c, status, code)
}

func domainErrCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotAvailable):
		return http.StatusNotFound, response.ErrExamNotAvailable
	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrAttemptCompleted),
		errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAttemptCompleted
	case errors.Is(err, service.ErrNotAttemptOwner):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrPlaybackExhausted),
		errors.Is(err, session.ErrPlaybackExhausted):
		return http.StatusConflict, response.ErrPlaybackExhausted
	case errors.Is(err, session.ErrAnswersLocked):
		return http.StatusConflict, response.ErrAnswersLocked
	case errors.Is(err, session.ErrSubmitInFlight):
		return http.StatusConflict, response.ErrSubmitInFlight
	case errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, session.ErrUnknownSection):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, session.ErrBadPhase),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrNoExam):
		return http.StatusConflict, response.ErrReviewNotAllowed
	case errors.Is(err, model.ErrUnsupportedQuestionType):
		return http.StatusUnprocessableEntity, response.ErrUnsupportedQuestion
	case errors.Is(err, model.ErrAnswerShapeMismatch):
		return http.StatusUnprocessableEntity, response.ErrAnswerShapeMismatch
	}
	return http.StatusInternalServerError, response.ErrInternal
}
