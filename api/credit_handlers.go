package api

import (
	"net/http"
	"strconv"
	"time"

	"creditledger/models"

	"github.com/gin-gonic/gin"
)

type balanceResponse struct {
	UserID      string     `json:"userId"`
	Balance     int64      `json:"balance"`
	LastRefresh *time.Time `json:"lastRefresh"`
}

func newBalanceResponse(credit *models.UserCredit) balanceResponse {
	return balanceResponse{
		UserID:      credit.UserID,
		Balance:     credit.Balance,
		LastRefresh: credit.LastRefresh,
	}
}

type historyQuery struct {
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
	Before   string `form:"before" binding:"omitempty"`
	BeforeID int64  `form:"beforeId" binding:"omitempty,min=1"`
}

type historyCursor struct {
	Before   string `json:"before"`
	BeforeID int64  `json:"beforeId"`
}

type historyResponse struct {
	Transactions []*models.CreditTransaction `json:"transactions"`
	NextCursor   *historyCursor              `json:"nextCursor,omitempty"`
}

type recordTransactionRequest struct {
	Amount      int64   `json:"amount" binding:"required"`
	Description string  `json:"description" binding:"required,max=500"`
	MessageID   *string `json:"messageId" binding:"omitempty,min=1"`
}

// GetBalance handles GET /v1/users/:userID/credits
func (h *Handlers) GetBalance(c *gin.Context) {
	credit, err := h.Credits.GetBalance(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.respondError(c, "get_balance", err)
		return
	}
	c.JSON(http.StatusOK, newBalanceResponse(credit))
}

// ListTransactions handles GET /v1/users/:userID/credits/transactions
func (h *Handlers) ListTransactions(c *gin.Context) {
	var query historyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "invalid limit or cursor")
		return
	}
	if query.BeforeID != 0 && query.Before == "" {
		badRequest(c, "beforeId requires before")
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("userID")

	var (
		txs []*models.CreditTransaction
		err error
	)
	if query.Before != "" {
		before, parseErr := time.Parse(time.RFC3339Nano, query.Before)
		if parseErr != nil {
			badRequest(c, "before must be an RFC 3339 timestamp")
			return
		}
		cursor := models.HistoryCursor{CreatedAt: before, ID: query.BeforeID}
		txs, err = h.Credits.ListTransactionsBefore(ctx, userID, cursor, query.Limit)
	} else {
		txs, err = h.Credits.ListTransactions(ctx, userID, query.Limit)
	}
	if err != nil {
		h.respondError(c, "list_transactions", err)
		return
	}

	resp := historyResponse{Transactions: txs}
	if len(txs) == 0 {
		resp.Transactions = []*models.CreditTransaction{}
	} else {
		next := models.CursorAfter(txs[len(txs)-1])
		resp.NextCursor = &historyCursor{
			Before:   next.CreatedAt.UTC().Format(time.RFC3339Nano),
			BeforeID: next.ID,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CheckSufficient handles GET /v1/users/:userID/credits/sufficient?required=n
func (h *Handlers) CheckSufficient(c *gin.Context) {
	required, err := strconv.ParseInt(c.Query("required"), 10, 64)
	if err != nil {
		badRequest(c, "required must be an integer")
		return
	}

	ok, err := h.Credits.HasSufficientCredits(c.Request.Context(), c.Param("userID"), required)
	if err != nil {
		h.respondError(c, "has_sufficient_credits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sufficient": ok, "required": required})
}

// RecordTransaction handles POST /v1/users/:userID/credits/transactions
func (h *Handlers) RecordTransaction(c *gin.Context) {
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount and description are required")
		return
	}

	tx, err := h.Credits.RecordTransaction(c.Request.Context(), c.Param("userID"), req.Amount, req.MessageID, req.Description)
	if err != nil {
		h.respondError(c, "record_transaction", err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

// RefreshCredits handles POST /internal/credits/:userID/refresh
func (h *Handlers) RefreshCredits(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userID")

	refreshed, err := h.Credits.RefreshIfDue(ctx, userID, h.DailyRefreshAmount)
	if err != nil {
		h.respondError(c, "refresh", err)
		return
	}

	credit, err := h.Credits.GetBalance(ctx, userID)
	if err != nil {
		h.respondError(c, "get_balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refreshed": refreshed,
		"credits":   newBalanceResponse(credit),
	})
}
