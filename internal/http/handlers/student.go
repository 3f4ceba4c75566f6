package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/codeflow-backend/internal/http/response"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/services"
)

type StudentHandler struct {
	students   services.StudentService
	sequencing services.SequencingService
}

func NewStudentHandler(students services.StudentService, sequencing services.SequencingService) *StudentHandler {
	return &StudentHandler{students: students, sequencing: sequencing}
}

// POST /students
func (h *StudentHandler) Onboard(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var in services.OnboardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	st, err := h.students.Onboard(dbctx.New(c.Request.Context()), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"studentId": st.ID, "status": "onboarded"})
}

// GET /students/:studentId/mastery
func (h *StudentHandler) Mastery(c *gin.Context) {
	studentID := c.Param("studentId")
	views, err := h.students.Mastery(dbctx.New(c.Request.Context()), studentID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"studentId": studentID, "skills": views})
}

// GET /students/:studentId/weak-skills?limit=3
func (h *StudentHandler) WeakSkills(c *gin.Context) {
	limit := services.DefaultWeakSkillLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	studentID := c.Param("studentId")
	views, err := h.students.WeakSkills(dbctx.New(c.Request.Context()), studentID, limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"studentId": studentID, "weakSkills": views})
}

// GET /students/:studentId/next-problem
func (h *StudentHandler) NextProblem(c *gin.Context) {
	view, err := h.sequencing.Latest(dbctx.New(c.Request.Context()), c.Param("studentId"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, view)
}
