package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/http/response"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/services"
)

type CatalogHandler struct {
	catalog services.CatalogService
}

func NewCatalogHandler(catalog services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// problemView hides expected test outputs from clients.
type problemView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	PrimarySkill string   `json:"primarySkill"`
	Skills       []string `json:"skills"`
	Difficulty   float64  `json:"difficulty"`
	TestCount    int      `json:"testCount"`
}

func toProblemView(p *types.Problem) problemView {
	skills := []string(p.Skills)
	if skills == nil {
		skills = []string{}
	}
	return problemView{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		PrimarySkill: p.PrimarySkill,
		Skills:       skills,
		Difficulty:   p.Difficulty,
		TestCount:    len(p.TestCases),
	}
}

// GET /skills
func (h *CatalogHandler) ListSkills(c *gin.Context) {
	response.RespondOK(c, gin.H{"skills": h.catalog.Catalog().Skills()})
}

// GET /problems?skill=recursion
func (h *CatalogHandler) ListProblems(c *gin.Context) {
	problems, err := h.catalog.ListProblems(dbctx.New(c.Request.Context()))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	skill := c.Query("skill")
	out := make([]problemView, 0, len(problems))
	for _, p := range problems {
		if skill != "" && !hasSkill(p, skill) {
			continue
		}
		out = append(out, toProblemView(p))
	}
	response.RespondOK(c, gin.H{"problems": out})
}

// GET /problems/:problemId
func (h *CatalogHandler) GetProblem(c *gin.Context) {
	p, err := h.catalog.GetProblem(dbctx.New(c.Request.Context()), c.Param("problemId"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, toProblemView(p))
}

func hasSkill(p *types.Problem, skill string) bool {
	if p.PrimarySkill == skill {
		return true
	}
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
