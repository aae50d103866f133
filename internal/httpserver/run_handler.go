package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/service"
	"mailtriage/pkg/rbac"
)

const maxBatchSize = 100

// TriageAPI 是 HTTP 层依赖的服务能力，*service.TriageService 满足该接口
type TriageAPI interface {
	Process(ctx context.Context, email model.Email) (*model.RunState, error)
	ProcessBatch(ctx context.Context, emails []model.Email) []service.Result
	Get(ctx context.Context, runID string) (*model.RunState, error)
	List(ctx context.Context, status model.RunStatus, limit int) ([]*model.RunState, error)
	Decide(ctx context.Context, runID string, d model.HumanDecision) (*model.RunState, error)
	Cancel(ctx context.Context, id string) (*model.RunState, error)
}

type RunHandler struct {
	svc    TriageAPI
	logger *zap.Logger
}

func NewRunHandler(svc TriageAPI, logger *zap.Logger) *RunHandler {
	return &RunHandler{svc: svc, logger: logger}
}

type emailRequest struct {
	ID         string            `json:"id" binding:"required"`
	Sender     string            `json:"sender"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	History    string            `json:"history"`
	RawHeaders map[string]string `json:"raw_headers"`
	ReceivedAt time.Time         `json:"received_at"`
}

func (r emailRequest) email() model.Email {
	return model.Email{
		ID:         r.ID,
		Sender:     r.Sender,
		Subject:    r.Subject,
		Body:       r.Body,
		History:    r.History,
		RawHeaders: r.RawHeaders,
		ReceivedAt: r.ReceivedAt,
	}
}

// runContext 与请求断开：客户端断线不会取消已开始的 run，
// 需要取消时走 POST /runs/:id/cancel
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// SubmitEmail 同步处理一封邮件，返回 RunState
// POST /emails
func (h *RunHandler) SubmitEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.svc.Process(runContext(c), req.email())
	h.respondRun(c, st, err)
}

type batchRequest struct {
	Emails []emailRequest `json:"emails" binding:"required,dive"`
}

type batchItem struct {
	EmailID string          `json:"email_id"`
	Run     *model.RunState `json:"run,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SubmitBatch 并发处理多封邮件，单封失败不影响其它
// POST /emails/batch
func (h *RunHandler) SubmitBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Emails) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many emails in one batch"})
		return
	}

	emails := make([]model.Email, len(req.Emails))
	for i, r := range req.Emails {
		emails[i] = r.email()
	}

	results := h.svc.ProcessBatch(runContext(c), emails)
	items := make([]batchItem, len(results))
	for i, r := range results {
		items[i] = batchItem{EmailID: r.EmailID, Run: r.State}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

type agentRunRequest struct {
	Input   string `json:"input" binding:"required"`
	History string `json:"history"`
}

// AgentRun 兼容旧原型的接口：只给正文，返回分类和回复
// POST /agent/run
func (h *RunHandler) AgentRun(c *gin.Context) {
	var req agentRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": err.Error()})
		return
	}

	email := model.Email{
		ID:      uuid.NewString(),
		Body:    req.Input,
		History: req.History,
	}
	st, err := h.svc.Process(runContext(c), email)
	if st == nil {
		h.logger.Error("Agent run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "detail": errString(err)})
		return
	}

	resp := gin.H{
		"status":     "success",
		"run_id":     st.RunID,
		"run_status": st.Status,
		"category":   "",
		"reply":      "",
	}
	if st.Category != nil {
		resp["category"] = st.Category.Category
	}
	if st.Draft != nil && st.Draft.GuardrailStatus == model.GuardrailPassed {
		resp["reply"] = st.Draft.Body
	}
	if err != nil {
		resp["status"] = "error"
		resp["detail"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// ListRuns 按状态列出运行，默认列出等待人工的
// GET /runs?status=WAITING_HUMAN&limit=100
func (h *RunHandler) ListRuns(c *gin.Context) {
	status := model.RunStatus(c.DefaultQuery("status", string(model.RunWaitingHuman)))
	switch status {
	case model.RunRunning, model.RunWaitingHuman, model.RunCompleted, model.RunFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	runs, err := h.svc.List(c.Request.Context(), status, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if runs == nil {
		runs = []*model.RunState{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun 查询运行状态
// GET /runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type decisionRequest struct {
	Action   string `json:"action" binding:"required"`
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

// Decide 人工决定，恢复 WAITING_HUMAN 的运行
// POST /runs/:id/decision
func (h *RunHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reviewer := c.GetString(ctxReviewer)
	if err := rbac.ValidateReviewer(reviewer, req.Reviewer); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	d := model.HumanDecision{
		Action:    model.DecisionAction(req.Action),
		Reviewer:  reviewer,
		Note:      req.Note,
		DecidedAt: time.Now().UTC(),
	}
	st, err := h.svc.Decide(runContext(c), c.Param("id"), d)
	h.respondRun(c, st, err)
}

// Cancel 取消运行：进行中的在下一个节点边界停止，等待人工的立即失败
// POST /runs/:id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	st, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if st == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// respondRun 运行失败也返回 RunState，失败原因在 failure 字段里
func (h *RunHandler) respondRun(c *gin.Context, st *model.RunState, err error) {
	if err == nil {
		c.JSON(http.StatusOK, st)
		return
	}
	if st != nil && st.Status == model.RunFailed && model.KindOf(err) != model.KindPersistenceFailure {
		c.JSON(http.StatusOK, st)
		return
	}
	h.respondError(c, err)
}

func (h *RunHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, graph.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInFlight),
		errors.Is(err, service.ErrNotCancellable),
		errors.Is(err, graph.ErrNotWaiting),
		errors.Is(err, graph.ErrNodeNotResumable):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("error_kind", string(model.KindOf(err))),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
