package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-papers/internal/middleware"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/response"
	"github.com/stemsi/exstem-papers/internal/service"
	"github.com/stemsi/exstem-papers/internal/validator"
)

// StudentExamHandler handles the student side of an exam session.
type StudentExamHandler struct {
	sessionService *service.ExamSessionService
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(sessionService *service.ExamSessionService) *StudentExamHandler {
	return &StudentExamHandler{sessionService: sessionService}
}

// ListAvailableExams godoc
// GET /api/v1/student/exams/available
// Open and upcoming exams the student has not completed, earliest first.
func (h *StudentExamHandler) ListAvailableExams(c *gin.Context) {
	exams, err := h.sessionService.AvailableExams(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Opens a session or resumes the ongoing one.
func (h *StudentExamHandler) StartExam(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	started, err := h.sessionService.StartExam(c.Request.Context(), middleware.CallerFrom(c), examID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if started.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, started)
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// Grades the submission. Answers are decoded into typed values here so the
// service never sees a malformed payload.
func (h *StudentExamHandler) SubmitExam(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answers, err := model.DecodeAnswers(req.Answers)
	if err != nil {
		var aerr *model.AnswerError
		if errors.As(err, &aerr) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidAnswer, map[string]string{aerr.Field(): aerr.Reason})
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	result, err := h.sessionService.SubmitExam(c.Request.Context(), middleware.CallerFrom(c), examID, req.RecordID, answers)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ListRecords godoc
// GET /api/v1/student/records
func (h *StudentExamHandler) ListRecords(c *gin.Context) {
	records, err := h.sessionService.MyRecords(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"records": records})
}

// GetRecord godoc
// GET /api/v1/student/records/:record_id
func (h *StudentExamHandler) GetRecord(c *gin.Context) {
	recordID, ok := paramUUID(c, "record_id")
	if !ok {
		return
	}

	record, err := h.sessionService.RecordDetail(c.Request.Context(), middleware.CallerFrom(c), recordID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"record": record})
}
