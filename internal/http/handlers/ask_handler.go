// Ask HTTP handler.
//
// This file exposes the single inference endpoint:
//   - POST {base}/ask
//
// The endpoint handles two request shapes, dispatched on the presence of the
// "skill" field:
//   - skill requests run through the billing guard, the skill engine, and a
//     ledger charge; responses carry X-Request-ID / X-Credits-Used /
//     X-Credits-Balance headers;
//   - raw requests (messages or prompt/system) are routed to a model tier
//     and forwarded to the local inference server without billing.
//
// Handlers are transport-thin: they validate and normalize inputs, delegate
// to application services, and map service errors to stable HTTP codes.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// charge exists for (user, route, key), the handler returns the recorded
// usage receipt without charging again and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-skill-gateway/internal/domain"
	"github.com/tbourn/go-skill-gateway/internal/http/middleware"
	"github.com/tbourn/go-skill-gateway/internal/llm"
	"github.com/tbourn/go-skill-gateway/internal/provider"
	"github.com/tbourn/go-skill-gateway/internal/rag"
	"github.com/tbourn/go-skill-gateway/internal/repo"
	"github.com/tbourn/go-skill-gateway/internal/services"
	"github.com/tbourn/go-skill-gateway/internal/skills"
)

// askRoute is the route tag recorded on usage events and ledger reasons.
const askRoute = "ask"

//
// Service contracts
//

// AskService executes routed completions and billed skill runs.
type AskService interface {
	Raw(ctx context.Context, in services.RawAsk) (*services.RawAnswer, error)
	RunSkill(ctx context.Context, in services.SkillAsk) (*services.SkillAnswer, error)
}

// BillingService guards and meters requests against the credit ledger.
type BillingService interface {
	Admit(ctx context.Context, email, requestID string) (*services.BillingContext, error)
	Charge(ctx context.Context, bc *services.BillingContext, route string, usage services.Usage) (cost, newBalance float64, err error)
	Balance(ctx context.Context, userID string) (float64, error)
	TopUp(ctx context.Context, userID string, amount float64, reason string) (float64, error)
	EnsureUser(ctx context.Context, email string) (*domain.User, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for asks, skills, and credits. It
// depends on abstract service interfaces to keep transport concerns separate
// from business logic; DB is used directly only for idempotency records and
// ETag statistics.
type Handlers struct {
	askSvc  AskService
	billSvc BillingService
	reg     *skills.Registry
	db      *gorm.DB
}

// New constructs a Handlers instance bound to the given services.
func New(askSvc AskService, billSvc BillingService, reg *skills.Registry, db *gorm.DB) *Handlers {
	return &Handlers{askSvc: askSvc, billSvc: billSvc, reg: reg, db: db}
}

// userEmail resolves the caller identity: the "userEmail" context value set
// by upstream auth middleware first, then the X-User-Email header. An empty
// return means no identity.
func userEmail(c *gin.Context) string {
	if v, ok := c.Get("userEmail"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-Email")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// AskDocument is one retrievable document supplied with a context-using
// skill request.
type AskDocument struct {
	ID   string         `json:"id,omitempty"`
	Text string         `json:"text" binding:"required"`
	Meta map[string]any `json:"meta,omitempty"`
}

// AskRequest is the JSON payload for POST {base}/ask. Exactly one of the two
// shapes applies: Skill+Input (billed), or Messages / Prompt (raw).
type AskRequest struct {
	// Billed shape
	Skill     string        `json:"skill,omitempty" example:"summarize"`
	Input     string        `json:"input,omitempty" example:"Quarterly revenue grew 12%..."`
	Locale    string        `json:"locale,omitempty" example:"el-GR"`
	Documents []AskDocument `json:"documents,omitempty"`

	// Raw shape
	Messages  []llm.Message `json:"messages,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	System    string        `json:"system,omitempty"`
	Tools     []string      `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// SkillAskResponse is the envelope for a billed skill run.
type SkillAskResponse struct {
	OK           bool           `json:"ok"`
	Result       *skills.Result `json:"result"`
	Usage        skills.Usage   `json:"usage"`
	Cost         float64        `json:"cost"`
	Balance      float64        `json:"balance"`
	UsedFallback string         `json:"usedFallback,omitempty"`
	Replayed     bool           `json:"replayed,omitempty"`
}

// RawAskResponse is the envelope for an unbilled pass-through completion.
type RawAskResponse struct {
	OK       bool         `json:"ok"`
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Message  llm.Message  `json:"message"`
	Usage    skills.Usage `json:"usage"`
}

//
// Handlers
//

// Ask godoc
// @ID          ask
// @Summary     Run a skill or a raw completion
// @Description Dispatches on the "skill" field: skill requests are billed against
// @Description the caller's credit ledger; raw prompt/messages requests are routed
// @Description to a model tier and forwarded without billing.
// @Tags        Ask
// @Accept      json
// @Produce     json
//
// @Param       X-User-Email     header  string  false "Caller identity (required for skill requests)"  example(user@example.com)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.AskRequest  true  "Ask payload"
//
// @Success     200  {object}  handlers.SkillAskResponse     "Skill result with usage receipt"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse        "No identity"
// @Failure     402  {object}  handlers.ErrorResponse        "Insufficient credits"
// @Failure     403  {object}  handlers.ErrorResponse        "Provider not allowed"
// @Failure     500  {object}  handlers.ErrorResponse        "Skill or charge failure"
// @Router      /ask [post]
func (h *Handlers) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Skill) != "" {
		h.askSkill(c, req)
		return
	}
	h.askRaw(c, req)
}

// askSkill runs the billed path: admit, execute, charge, respond.
func (h *Handlers) askSkill(c *gin.Context, req AskRequest) {
	ctx := c.Request.Context()
	requestID := c.Writer.Header().Get("X-Request-ID")

	if strings.TrimSpace(req.Input) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "input required")
		return
	}

	email := userEmail(c)
	if email == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no caller identity")
		return
	}

	bc, err := h.billSvc.Admit(ctx, email, requestID)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientCredits) {
			c.Header("X-Credits-Balance", formatCredits(bc.Balance))
			fail(c, http.StatusPaymentRequired, ErrCodeInsufficientCredits, "balance below hard stop floor")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	// Idempotency (replay path): a recorded charge for (user, route, key)
	// returns its receipt without executing or charging again.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, bc.UserID, askRoute, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if ev, err2 := repo.GetUsageEvent(ctx, h.db, rec.UsageEventID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				c.Header("X-Credits-Used", formatCredits(ev.CostCredits))
				c.Header("X-Credits-Balance", formatCredits(bc.Balance))
				ok(c, http.StatusOK, SkillAskResponse{
					OK:       true,
					Usage:    skills.Usage{TokensIn: ev.TokensIn, TokensOut: ev.TokensOut},
					Cost:     ev.CostCredits,
					Balance:  bc.Balance,
					Replayed: true,
				})
				return
			}
		}
	}

	docs := make([]rag.Doc, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, rag.Doc{ID: d.ID, Text: d.Text, Meta: d.Meta})
	}

	answer, err := h.askSvc.RunSkill(ctx, services.SkillAsk{
		Skill:     req.Skill,
		Input:     req.Input,
		Locale:    req.Locale,
		Documents: docs,
	})
	if err != nil {
		h.failSkill(c, err)
		return
	}

	cost, balance, err := h.billSvc.Charge(ctx, bc, askRoute, services.Usage{
		TokensIn:  answer.Result.Usage.TokensIn,
		TokensOut: answer.Result.Usage.TokensOut,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeChargeFailed, "could not record usage charge")
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.db != nil {
		if ev := latestUsageEvent(ctx, h.db, bc.UserID, bc.RequestID); ev != "" {
			_, _ = repo.CreateIdempotency(ctx, h.db, bc.UserID, askRoute, idemKey, ev, http.StatusOK, 24*time.Hour)
		}
	}

	c.Header("X-Request-ID", bc.RequestID)
	c.Header("X-Credits-Used", formatCredits(cost))
	c.Header("X-Credits-Balance", formatCredits(balance))

	ok(c, http.StatusOK, SkillAskResponse{
		OK:           true,
		Result:       answer.Result,
		Usage:        answer.Result.Usage,
		Cost:         cost,
		Balance:      balance,
		UsedFallback: string(answer.UsedFallback),
	})
}

// askRaw runs the unbilled pass-through path.
func (h *Handlers) askRaw(c *gin.Context, req AskRequest) {
	ctx := c.Request.Context()

	answer, err := h.askSvc.Raw(ctx, services.RawAsk{
		Messages:  req.Messages,
		Prompt:    req.Prompt,
		System:    req.System,
		Tools:     req.Tools,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyPrompt):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt or messages required")
		case errors.Is(err, provider.ErrNotAllowed):
			fail(c, http.StatusForbidden, ErrCodeProviderForbidden, err.Error())
		default:
			h.failUpstream(c, err, ErrCodeAskFailed)
		}
		return
	}

	ok(c, http.StatusOK, RawAskResponse{
		OK:       true,
		Provider: answer.Provider,
		Model:    answer.Model,
		Message:  llm.Message{Role: "assistant", Content: answer.Content},
		Usage:    answer.Usage,
	})
}

// failSkill maps skill-run errors to HTTP codes.
func (h *Handlers) failSkill(c *gin.Context, err error) {
	switch {
	case errors.Is(err, skills.ErrUnknownSkill):
		fail(c, http.StatusBadRequest, ErrCodeUnknownSkill, err.Error())
	case errors.Is(err, skills.ErrEmptyInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "skill and input required")
	case errors.Is(err, provider.ErrNotAllowed):
		fail(c, http.StatusForbidden, ErrCodeProviderForbidden, err.Error())
	default:
		h.failUpstream(c, err, ErrCodeAskFailed)
	}
}

// failUpstream passes the upstream status and a truncated body through when
// the error came from the inference server; anything else is a 500.
func (h *Handlers) failUpstream(c *gin.Context, err error, fallbackCode string) {
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		fail(c, ue.Status, ErrCodeUpstreamError, ue.Body)
		return
	}
	fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
}

// latestUsageEvent finds the usage event recorded for this request, for
// linking the idempotency record. Best effort.
func latestUsageEvent(ctx context.Context, db *gorm.DB, userID, requestID string) string {
	if requestID == "" {
		return ""
	}
	var id string
	err := db.WithContext(ctx).
		Raw(`SELECT id FROM usage_event WHERE user_id = ? AND request_id = ? ORDER BY created_at DESC LIMIT 1`, userID, requestID).
		Scan(&id).Error
	if err != nil {
		return ""
	}
	return id
}

// formatCredits renders a credit amount without trailing zeros ("0.2", not
// "0.200000").
func formatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
