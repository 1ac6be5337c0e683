package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/services"
	"github.com/arbiterlabs/arbiter/internal/server/validator"
	"github.com/arbiterlabs/arbiter/internal/store"
	"github.com/arbiterlabs/arbiter/pkg/schema"
)

type Handler struct {
	router  *services.ModelRouter
	tags    *services.TagService
	catalog *services.CatalogSync
	repo    store.Repository
}

func NewHandler(router *services.ModelRouter, tags *services.TagService, catalog *services.CatalogSync, repo store.Repository) *Handler {
	return &Handler{router: router, tags: tags, catalog: catalog, repo: repo}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/route", h.HandleRoute)
	group.POST("/route/test", h.HandleTestRoute)
	group.POST("/routing-configs/:id/invalidate", h.HandleInvalidate)
	group.POST("/catalog/:model/tags/assign", h.HandleAssignTags)
	group.POST("/catalog/sync", h.HandleSyncCatalog)

	group.GET("/bots", h.HandleListBots)
	group.GET("/bots/:id/routing-configs", h.HandleListRoutingConfigs)
	group.GET("/catalog", h.HandleListCatalog)
	group.GET("/catalog/:model/tags", h.HandleListModelTags)
}

func (h *Handler) HandleRoute(c *gin.Context) {
	var req schema.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem := domain.ValidationError(validator.ParseValidationError(err))
		c.JSON(problem.Status, problem)
		return
	}

	outcome := h.router.Route(c.Request.Context(), services.RouteRequest{
		BotID:       req.BotID,
		RoutingHint: req.RoutingHint,
		Payload:     &req.Payload,
	})

	if !outcome.Succeeded {
		problem := domain.ProblemFor(outcome)
		c.JSON(problem.Status, problem)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vendor":            outcome.Vendor,
		"model":             outcome.Model,
		"provider_key_id":   outcome.ProviderKeyID,
		"attempted_targets": outcome.Attempted,
		"completion":        rawJSON(outcome.Result),
	})
}

func (h *Handler) HandleTestRoute(c *gin.Context) {
	var req schema.TestRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem := domain.ValidationError(validator.ParseValidationError(err))
		c.JSON(problem.Status, problem)
		return
	}

	result, err := h.router.TestRoute(c.Request.Context(), services.RouteRequest{
		BotID:       req.BotID,
		RoutingHint: req.RoutingHint,
		Payload:     &req.Payload,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleInvalidate(c *gin.Context) {
	h.router.ClearLoadBalanceState(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *Handler) HandleAssignTags(c *gin.Context) {
	matches, err := h.tags.AssignTags(c.Request.Context(), c.Param("model"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model_id": c.Param("model"), "matches": matches})
}

func (h *Handler) HandleSyncCatalog(c *gin.Context) {
	synced, err := h.catalog.SyncAll(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced_models": synced})
}

func (h *Handler) HandleListBots(c *gin.Context) {
	bots, err := h.repo.Bots().List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bots})
}

func (h *Handler) HandleListRoutingConfigs(c *gin.Context) {
	configs, err := h.repo.RoutingConfigs().ListForBot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	out := make([]gin.H, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, gin.H{
			"id":       cfg.ID,
			"kind":     cfg.Variant.Kind(),
			"priority": cfg.Priority,
			"enabled":  cfg.Enabled,
			"params":   cfg.Variant,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *Handler) HandleListCatalog(c *gin.Context) {
	entries, err := h.repo.Catalog().List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *Handler) HandleListModelTags(c *gin.Context) {
	matches, err := h.repo.CapabilityTags().AssignmentsForModel(c.Request.Context(), c.Param("model"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": matches})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var re *domain.RoutingError
	if errors.As(err, &re) {
		problem := domain.ProblemFor(domain.RouteOutcome{Reason: re.Reason, Detail: re.Detail})
		c.JSON(problem.Status, problem)
		return
	}
	var appErr *domain.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// rawJSON re-emits the normalized completion verbatim.
func rawJSON(result *domain.CallResult) any {
	if result == nil || len(result.Body) == 0 {
		return nil
	}
	return json.RawMessage(result.Body)
}
