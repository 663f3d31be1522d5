package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/workflow"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitRequest is the body of POST /api/justifications
type SubmitRequest struct {
	Title          string              `json:"title"`
	TypeCode       string              `json:"type_code"`
	Department     string              `json:"department"`
	CostCentre     string              `json:"cost_centre"`
	RequesterEmail string              `json:"requester_email"`
	Urgency        string              `json:"urgency"`
	Description    string              `json:"description"`
	BusinessImpact string              `json:"business_impact"`
	Alternatives   string              `json:"alternatives"`
	CostEstimate   *float64            `json:"cost_estimate"`
	RequiredDate   string              `json:"required_date"`
	DynamicValues  map[string]any      `json:"dynamic_values"`
	Attachments    []entity.Attachment `json:"attachments"`
}

// ApproverAction is the body of approve and reject. Reject reads the reason
// from comment when reason is empty.
type ApproverAction struct {
	ActorEmail string `json:"actor_email"`
	Comment    string `json:"comment"`
	Reason     string `json:"reason"`
}

// ReasonAction is the body of request-info and cancel
type ReasonAction struct {
	ActorEmail string `json:"actor_email"`
	Reason     string `json:"reason"`
}

// ResubmitRequest is the body of POST /api/justifications/:id/resubmit
type ResubmitRequest struct {
	ActorEmail string `json:"actor_email"`
	Message    string `json:"message"`
}

// CommentRequest is the body of POST /api/justifications/:id/comments
type CommentRequest struct {
	AuthorEmail string `json:"author_email"`
	Message     string `json:"message"`
	IsInternal  bool   `json:"is_internal"`
}

var okBody = gin.H{"ok": true}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.deps.Version,
	})
}

// ReadyCheck handles GET /health/ready
func (h *Handlers) ReadyCheck(c *gin.Context) {
	if h.deps.Health == nil {
		ok(c, http.StatusOK, gin.H{"overall": true})
		return
	}
	status := h.deps.Health.Health(c.Request.Context())
	code := http.StatusOK
	if !status.Overall {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, Response{Success: status.Overall, Data: status})
}

// Submit handles POST /api/justifications
func (h *Handlers) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.deps.Engine.Submit(c.Request.Context(), workflow.SubmitInput{
		Title:          req.Title,
		TypeCode:       req.TypeCode,
		Department:     req.Department,
		CostCentre:     req.CostCentre,
		RequesterEmail: req.RequesterEmail,
		Urgency:        req.Urgency,
		Description:    req.Description,
		BusinessImpact: req.BusinessImpact,
		Alternatives:   req.Alternatives,
		CostEstimate:   req.CostEstimate,
		RequiredDate:   req.RequiredDate,
		DynamicValues:  req.DynamicValues,
		Attachments:    req.Attachments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	ok(c, http.StatusCreated, gin.H{"id": result.Justification.ID})
}

// ListJustifications handles GET /api/justifications
func (h *Handlers) ListJustifications(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	list, err := h.deps.Query.ListJustifications(c.Request.Context(), port.JustificationFilter{
		RequesterEmail: c.Query("requester_email"),
		Status:         entity.JustificationStatus(c.Query("status")),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// GetJustification handles GET /api/justifications/:id
func (h *Handlers) GetJustification(c *gin.Context) {
	detail, err := h.deps.Query.GetJustification(c.Request.Context(), entity.JustificationID(c.Param("id")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// ExportJustification handles GET /api/justifications/:id/export
func (h *Handlers) ExportJustification(c *gin.Context) {
	id := entity.JustificationID(c.Param("id"))
	detail, err := h.deps.Query.GetJustification(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Exporter.Export(c.Request.Context(), detail, &buf); err != nil {
		h.logger.Error("Export failed", "justification_id", id, "error", err)
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("justification-%s%s", id, h.deps.Exporter.FileExtension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, h.deps.Exporter.ContentType(), buf.Bytes())
}

// Resubmit handles POST /api/justifications/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	var req ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	err := h.deps.Engine.Resubmit(c.Request.Context(), entity.JustificationID(c.Param("id")), req.ActorEmail, req.Message)
	h.respondAck(c, err)
}

// Cancel handles POST /api/justifications/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	var req ReasonAction
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	err := h.deps.Engine.Cancel(c.Request.Context(), entity.JustificationID(c.Param("id")), req.ActorEmail, req.Reason)
	h.respondAck(c, err)
}

// AddComment handles POST /api/justifications/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	comment, err := h.deps.Engine.AddComment(c.Request.Context(), entity.JustificationID(c.Param("id")), req.AuthorEmail, req.Message, req.IsInternal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"id": comment.ID})
}

// Inbox handles GET /api/inbox
func (h *Handlers) Inbox(c *gin.Context) {
	items, err := h.deps.Query.Inbox(c.Request.Context(), c.Query("approver_email"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// Approve handles POST /api/approvals/:task_id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req ApproverAction
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	err := h.deps.Engine.Approve(c.Request.Context(), entity.TaskID(c.Param("task_id")), req.ActorEmail, req.Comment)
	h.respondAck(c, err)
}

// Reject handles POST /api/approvals/:task_id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req ApproverAction
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Comment
	}
	err := h.deps.Engine.Reject(c.Request.Context(), entity.TaskID(c.Param("task_id")), req.ActorEmail, reason)
	h.respondAck(c, err)
}

// RequestInfo handles POST /api/approvals/:task_id/request-info
func (h *Handlers) RequestInfo(c *gin.Context) {
	var req ReasonAction
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	err := h.deps.Engine.RequestInfo(c.Request.Context(), entity.TaskID(c.Param("task_id")), req.ActorEmail, req.Reason)
	h.respondAck(c, err)
}

func (h *Handlers) respondAck(c *gin.Context, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, okBody)
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
