// Skills HTTP handler.
//
// Exposes the read-only skill catalog:
//   - GET {base}/skills
//
// The catalog is unauthenticated: it reveals only skill keys and titles,
// never prompts or pricing.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SkillEntry is one catalog row.
type SkillEntry struct {
	Key   string `json:"key" example:"summarize"`
	Title string `json:"title" example:"Summarize text"`
}

// ListSkillsResponse is the catalog envelope.
type ListSkillsResponse struct {
	Skills []SkillEntry `json:"skills"`
}

// ListSkills godoc
// @ID          listSkills
// @Summary     List available skills
// @Description Returns the registered skills as {key, title} pairs.
// @Tags        Skills
// @Produce     json
// @Success     200  {object}  handlers.ListSkillsResponse
// @Router      /skills [get]
func (h *Handlers) ListSkills(c *gin.Context) {
	all := h.reg.List()
	out := make([]SkillEntry, 0, len(all))
	for _, s := range all {
		out = append(out, SkillEntry{Key: s.Key, Title: s.Title})
	}
	ok(c, http.StatusOK, ListSkillsResponse{Skills: out})
}
