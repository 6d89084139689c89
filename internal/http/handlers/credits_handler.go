// Credits HTTP handlers.
//
// This file exposes the credit ledger endpoints:
//   - GET  {base}/credits/balance  (current balance)
//   - POST {base}/credits/topup    (credit the ledger)
//   - GET  {base}/credits/history  (paginated ledger rows)
//   - GET  {base}/usage            (paginated usage history, ETag-aware)
//
// All of them require a caller identity (context or X-User-Email header).
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-skill-gateway/internal/domain"
	"github.com/tbourn/go-skill-gateway/internal/repo"
	"github.com/tbourn/go-skill-gateway/internal/utils"
)

//
// DTOs
//

// BalanceResponse reports a user's current credit balance.
type BalanceResponse struct {
	UserID  string  `json:"user_id"`
	Email   string  `json:"email"`
	Balance float64 `json:"balance" example:"4.8"`
}

// TopUpRequest is the JSON payload for crediting a ledger.
type TopUpRequest struct {
	// Amount is the number of credits to add. Must be positive.
	Amount float64 `json:"amount" binding:"required" example:"10"`
	// Reason optionally tags the ledger row; defaults to "topup".
	Reason string `json:"reason,omitempty" example:"promo"`
}

// TopUpResponse reports the post-credit balance.
type TopUpResponse struct {
	Balance float64 `json:"balance"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListUsageResponse contains a page of usage events and pagination metadata.
type ListUsageResponse struct {
	Events     []domain.UsageEvent `json:"events"`
	Pagination Pagination          `json:"pagination"`
}

// ListCreditHistoryResponse contains a page of ledger rows and pagination
// metadata. Top-ups appear as positive amounts, usage debits as negative.
type ListCreditHistoryResponse struct {
	Transactions []domain.CreditTxn `json:"transactions"`
	Pagination   Pagination         `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// requireUser resolves the caller identity and provisions the user row,
// failing the request with 401 when no identity is present.
func (h *Handlers) requireUser(c *gin.Context) (*domain.User, bool) {
	email := userEmail(c)
	if email == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no caller identity")
		return nil, false
	}
	u, err := h.billSvc.EnsureUser(c.Request.Context(), email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return nil, false
	}
	return u, true
}

//
// Handlers
//

// GetBalance godoc
// @ID          getBalance
// @Summary     Get credit balance
// @Description Returns the caller's current credit balance (sum of all ledger rows).
// @Tags        Credits
// @Produce     json
// @Param       X-User-Email  header  string  true  "Caller identity"  example(user@example.com)
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     401  {object}  handlers.ErrorResponse  "No identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credits/balance [get]
func (h *Handlers) GetBalance(c *gin.Context) {
	u, okID := h.requireUser(c)
	if !okID {
		return
	}
	balance, err := h.billSvc.Balance(c.Request.Context(), u.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, BalanceResponse{UserID: u.ID, Email: u.Email, Balance: balance})
}

// TopUp godoc
// @ID          topUp
// @Summary     Add credits
// @Description Credits the caller's ledger and returns the new balance.
// @Tags        Credits
// @Accept      json
// @Produce     json
// @Param       X-User-Email  header  string                  true  "Caller identity"  example(user@example.com)
// @Param       body          body    handlers.TopUpRequest   true  "Top-up payload"
// @Success     200  {object}  handlers.TopUpResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "No identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credits/topup [post]
func (h *Handlers) TopUp(c *gin.Context) {
	u, okID := h.requireUser(c)
	if !okID {
		return
	}
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount must be positive")
		return
	}
	balance, err := h.billSvc.TopUp(c.Request.Context(), u.ID, req.Amount, req.Reason)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeTopUpFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TopUpResponse{Balance: balance})
}

// ListUsage godoc
// @ID          listUsage
// @Summary     List usage events
// @Description Returns a paginated list of the caller's usage events, newest first.
// @Description Supports conditional requests via ETag / If-None-Match.
// @Tags        Credits
// @Produce     json
// @Param       X-User-Email  header  string  true  "Caller identity"  example(user@example.com)
// @Param       page          query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size     query   int     false "Items per page"   minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListUsageResponse
// @Failure     401  {object}  handlers.ErrorResponse  "No identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /usage [get]
func (h *Handlers) ListUsage(c *gin.Context) {
	ctx := c.Request.Context()
	u, okID := h.requireUser(c)
	if !okID {
		return
	}

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.UsageStats(ctx, h.db, u.ID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"usage:%s:%d:%d"`, u.ID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)
	offset := (page - 1) * pageSize

	total, err := repo.CountUsageEvents(ctx, h.db, u.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items := []domain.UsageEvent{}
	if total > 0 {
		items, err = repo.ListUsageEventsPage(ctx, h.db, u.ID, offset, pageSize)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListUsageResponse{
		Events: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// ListCreditHistory godoc
// @ID          listCreditHistory
// @Summary     List ledger transactions
// @Description Returns a paginated list of the caller's credit ledger rows,
// @Description newest first. Includes both top-ups and usage debits.
// @Tags        Credits
// @Produce     json
// @Param       X-User-Email  header  string  true  "Caller identity"  example(user@example.com)
// @Param       page          query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size     query   int     false "Items per page"   minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListCreditHistoryResponse
// @Failure     401  {object}  handlers.ErrorResponse  "No identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credits/history [get]
func (h *Handlers) ListCreditHistory(c *gin.Context) {
	ctx := c.Request.Context()
	u, okID := h.requireUser(c)
	if !okID {
		return
	}

	page, pageSize := clampPagination(c)
	offset := (page - 1) * pageSize

	total, err := repo.CountCreditTxns(ctx, h.db, u.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items := []domain.CreditTxn{}
	if total > 0 {
		items, err = repo.ListCreditTxnsPage(ctx, h.db, u.ID, offset, pageSize)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListCreditHistoryResponse{
		Transactions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}
