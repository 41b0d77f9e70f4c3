package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/middleware"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/response"
	"github.com/stemsi/exstem-papers/internal/service"
	"github.com/stemsi/exstem-papers/internal/validator"
)

// PaperHandler handles exam paper composition endpoints for teachers.
type PaperHandler struct {
	paperService *service.PaperService
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(paperService *service.PaperService) *PaperHandler {
	return &PaperHandler{paperService: paperService}
}

// CreatePaper godoc
// POST /api/v1/teacher/papers
// Creates an empty DRAFT paper for an exam.
func (h *PaperHandler) CreatePaper(c *gin.Context) {
	var req model.CreatePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.Create(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"paper": paper})
}

// GeneratePaper godoc
// POST /api/v1/teacher/papers/generate
// Composes a DRAFT paper by sampling the question bank with selection rules.
func (h *PaperHandler) GeneratePaper(c *gin.Context) {
	var req model.GeneratePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.Generate(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"paper": paper})
}

// GetPaper godoc
// GET /api/v1/teacher/papers/:paper_id
func (h *PaperHandler) GetPaper(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	paper, err := h.paperService.Get(c.Request.Context(), middleware.CallerFrom(c), paperID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// UpdatePaper godoc
// PATCH /api/v1/teacher/papers/:paper_id
// Edits the title or duration of a DRAFT paper.
func (h *PaperHandler) UpdatePaper(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	var req model.UpdatePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.Update(c.Request.Context(), middleware.CallerFrom(c), paperID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// DeletePaper godoc
// DELETE /api/v1/teacher/papers/:paper_id
func (h *PaperHandler) DeletePaper(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	if err := h.paperService.Delete(c.Request.Context(), middleware.CallerFrom(c), paperID); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// AddQuestion godoc
// POST /api/v1/teacher/papers/:paper_id/questions
func (h *PaperHandler) AddQuestion(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.AddQuestion(c.Request.Context(), middleware.CallerFrom(c), paperID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// BatchAddQuestions godoc
// POST /api/v1/teacher/papers/:paper_id/questions/batch
// Appends several questions at their base score. All or nothing.
func (h *PaperHandler) BatchAddQuestions(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	var req model.QuestionIDsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.BatchAdd(c.Request.Context(), middleware.CallerFrom(c), paperID, req.QuestionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// RemoveQuestion godoc
// DELETE /api/v1/teacher/papers/:paper_id/questions/:question_id
func (h *PaperHandler) RemoveQuestion(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}
	questionID, ok := paramUUID(c, "question_id")
	if !ok {
		return
	}

	paper, err := h.paperService.RemoveQuestion(c.Request.Context(), middleware.CallerFrom(c), paperID, questionID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// UpdateOrder godoc
// PUT /api/v1/teacher/papers/:paper_id/order
// The body must list every question of the paper exactly once.
func (h *PaperHandler) UpdateOrder(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	var req model.QuestionIDsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.paperService.UpdateOrder(c.Request.Context(), middleware.CallerFrom(c), paperID, req.QuestionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// PublishPaper godoc
// POST /api/v1/teacher/papers/:paper_id/publish
func (h *PaperHandler) PublishPaper(c *gin.Context) {
	h.transition(c, h.paperService.Publish)
}

// ArchivePaper godoc
// POST /api/v1/teacher/papers/:paper_id/archive
func (h *PaperHandler) ArchivePaper(c *gin.Context) {
	h.transition(c, h.paperService.Archive)
}

// CopyPaper godoc
// POST /api/v1/teacher/papers/:paper_id/copy
// Clones the paper into a new DRAFT owned by the caller.
func (h *PaperHandler) CopyPaper(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	paper, err := h.paperService.Copy(c.Request.Context(), middleware.CallerFrom(c), paperID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"paper": paper})
}

// PreviewPaper godoc
// GET /api/v1/teacher/papers/:paper_id/preview
// Full question list with answer keys. Owner only.
func (h *PaperHandler) PreviewPaper(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	preview, err := h.paperService.Preview(c.Request.Context(), middleware.CallerFrom(c), paperID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, preview)
}

// PaperStatistics godoc
// GET /api/v1/teacher/papers/:paper_id/statistics
func (h *PaperHandler) PaperStatistics(c *gin.Context) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	stats, err := h.paperService.Statistics(c.Request.Context(), middleware.CallerFrom(c), paperID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"statistics": stats})
}

// ListExamPapers godoc
// GET /api/v1/teacher/exams/:exam_id/papers
func (h *PaperHandler) ListExamPapers(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	papers, err := h.paperService.ListByExam(c.Request.Context(), middleware.CallerFrom(c), examID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"papers": papers})
}

func (h *PaperHandler) transition(c *gin.Context, fn func(ctx context.Context, caller service.Caller, paperID uuid.UUID) (*model.Paper, error)) {
	paperID, ok := paramUUID(c, "paper_id")
	if !ok {
		return
	}

	paper, err := fn(c.Request.Context(), middleware.CallerFrom(c), paperID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}
