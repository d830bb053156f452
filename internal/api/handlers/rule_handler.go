package handlers

import (
	"net/http"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/gin-gonic/gin"
)

type RuleHandler struct {
	rules *service.RuleService
}

func NewRuleHandler(rules *service.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

func (h *RuleHandler) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.rules.List()})
}

type registerRulesRequest struct {
	Rules []domain.ReorderRule `json:"rules" binding:"required,dive"`
}

// RegisterRules upserts rules by material; later entries win.
func (h *RuleHandler) RegisterRules(c *gin.Context) {
	var req registerRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rules, err := h.rules.Register(req.Rules)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}
