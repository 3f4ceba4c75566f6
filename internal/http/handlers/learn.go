package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/codeflow-backend/internal/http/response"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/codeflow-backend/internal/services"
)

const maxBodyBytes = 1 << 20

type LearnHandler struct {
	ingestion services.IngestionService
	learner   services.LearnerStateService
}

func NewLearnHandler(ingestion services.IngestionService, learner services.LearnerStateService) *LearnHandler {
	return &LearnHandler{ingestion: ingestion, learner: learner}
}

// POST /learn
func (h *LearnHandler) Learn(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var in services.LearnInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	ctxutil.SetStudentID(c.Request.Context(), in.StudentID)
	res, err := h.ingestion.Ingest(dbctx.New(c.Request.Context()), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	ctxutil.SetEventID(c.Request.Context(), res.EventID.String())
	status := http.StatusAccepted
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// GET /event/:eventId
func (h *LearnHandler) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "event_not_found", errors.New("event not found"))
		return
	}
	st, err := h.ingestion.Status(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, st)
}

type learnerStateResponse struct {
	StudentID     string   `json:"studentId"`
	WeakSkills    []string `json:"weakSkills"`
	LearningState string   `json:"learningState"`
	AvgMastery    float64  `json:"avgMastery"`
	UpdatedAt     string   `json:"updatedAt"`
}

// GET /state/:studentId
func (h *LearnHandler) GetState(c *gin.Context) {
	st, err := h.learner.Latest(dbctx.New(c.Request.Context()), c.Param("studentId"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	weak := []string(st.WeakSkills)
	if weak == nil {
		weak = []string{}
	}
	response.RespondOK(c, learnerStateResponse{
		StudentID:     st.StudentID,
		WeakSkills:    weak,
		LearningState: st.LearningState,
		AvgMastery:    st.AvgMastery,
		UpdatedAt:     st.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
