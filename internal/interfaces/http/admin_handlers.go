package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/justifi/internal/application/service"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// TypeRequest is the body of POST /api/types
type TypeRequest struct {
	Code          string                `json:"code"`
	Name          string                `json:"name"`
	DynamicFields []entity.DynamicField `json:"dynamic_fields"`
}

// ListRules handles GET /api/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.deps.Rules.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, rules)
}

// CreateRule handles POST /api/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var req service.RuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	rule, err := h.deps.Rules.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"id": rule.ID})
}

// GetRule handles GET /api/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.deps.Rules.Get(c.Request.Context(), entity.RuleID(c.Param("id")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// UpdateRule handles PUT /api/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	var req service.RuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	rule, err := h.deps.Rules.Update(c.Request.Context(), entity.RuleID(c.Param("id")), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// ListTypes handles GET /api/types
func (h *Handlers) ListTypes(c *gin.Context) {
	types, err := h.deps.Types.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, types)
}

// CreateType handles POST /api/types
func (h *Handlers) CreateType(c *gin.Context) {
	var req TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	created, err := h.deps.Types.Create(c.Request.Context(), &entity.JustificationType{
		Code:          req.Code,
		Name:          req.Name,
		DynamicFields: req.DynamicFields,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// GetType handles GET /api/types/:code
func (h *Handlers) GetType(c *gin.Context) {
	t, err := h.deps.Types.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// ListTemplates handles GET /api/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	templates, err := h.deps.Templates.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, templates)
}

// GetTemplate handles GET /api/templates/:key
func (h *Handlers) GetTemplate(c *gin.Context) {
	t, err := h.deps.Templates.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// PutTemplate handles PUT /api/templates/:key
func (h *Handlers) PutTemplate(c *gin.Context) {
	var req service.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	t, err := h.deps.Templates.Put(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTemplate handles DELETE /api/templates/:key
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	if err := h.deps.Templates.Delete(c.Request.Context(), c.Param("key")); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, okBody)
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.deps.Users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

// GetUser handles GET /api/users/:email
func (h *Handlers) GetUser(c *gin.Context) {
	u, err := h.deps.Users.Get(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// PutUser handles PUT /api/users/:email
func (h *Handlers) PutUser(c *gin.Context) {
	var req service.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	u, err := h.deps.Users.Put(c.Request.Context(), c.Param("email"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser handles DELETE /api/users/:email
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.deps.Users.Delete(c.Request.Context(), c.Param("email")); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, okBody)
}
