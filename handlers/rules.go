package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ruleRepo "slotwise/database/repository/rule"
	"slotwise/models"
	"slotwise/utils"
)

// RuleHandler exposes store-level rule administration. The full admin UI
// lives elsewhere; these endpoints only move rule sets in and out.
type RuleHandler struct {
	Repo ruleRepo.RuleRepository
}

// NewRuleHandler returns a handler bound to the given repository.
func NewRuleHandler(repo ruleRepo.RuleRepository) *RuleHandler {
	return &RuleHandler{Repo: repo}
}

// ListRulesHandler handles GET /api/admin/rules.
func (h *RuleHandler) ListRulesHandler(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	rules, err := h.Repo.ListActiveRules(ctx, time.Now())
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "service unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// CreateRuleHandler handles POST /api/admin/rules.
func (h *RuleHandler) CreateRuleHandler(c *gin.Context) {
	var rule models.ScheduleRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if err := rule.Validate(); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid rule", err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Repo.Create(ctx, rule); err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "service unavailable", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// ReplaceRulesHandler handles PUT /api/admin/rules, swapping the whole set.
func (h *RuleHandler) ReplaceRulesHandler(c *gin.Context) {
	var input struct {
		Rules []models.ScheduleRule `json:"rules"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	for _, rule := range input.Rules {
		if err := rule.Validate(); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid rule", err.Error())
			return
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Repo.ReplaceAll(ctx, input.Rules); err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "service unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(input.Rules)})
}

// DeleteRuleHandler handles DELETE /api/admin/rules/:id.
func (h *RuleHandler) DeleteRuleHandler(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	existed, err := h.Repo.Delete(ctx, c.Param("id"))
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "service unavailable", err.Error())
		return
	}
	if !existed {
		utils.JSONError(c, http.StatusNotFound, "rule not found", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
