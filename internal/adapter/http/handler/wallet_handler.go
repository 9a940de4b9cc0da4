package handler

import (
	"context"

	"wallet-service/internal/adapter/http/dto"
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet endpoints, including recharge and charge.
type WalletHandler struct {
	walletSvc    ports.WalletService
	ledgerSvc    ports.LedgerService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, ledgerSvc ports.LedgerService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{
		walletSvc:    walletSvc,
		ledgerSvc:    ledgerSvc,
		reportingSvc: reportingSvc,
	}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewWalletResponse(wallet))
}

// ListOwn handles GET /api/v1/wallets.
func (h *WalletHandler) ListOwn(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	wallets, err := h.walletSvc.ListOwnWallets(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, dto.NewWalletList(wallets))
}

// ListClientWallets handles GET /api/v1/client-wallets.
func (h *WalletHandler) ListClientWallets(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	wallets, err := h.walletSvc.ListClientWallets(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, dto.NewWalletList(wallets))
}

// Status handles GET /api/v1/wallets/:token.
func (h *WalletHandler) Status(c *gin.Context) {
	actor, token, ok := identityAndToken(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetStatus(c.Request.Context(), actor, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Transactions handles GET /api/v1/wallets/:token/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	actor, token, ok := identityAndToken(c)
	if !ok {
		return
	}

	txns, err := h.walletSvc.ListWalletTransactions(c.Request.Context(), actor, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, dto.NewTransactionList(txns))
}

// Summary handles GET /api/v1/wallets/:token/summary.
func (h *WalletHandler) Summary(c *gin.Context) {
	actor, token, ok := identityAndToken(c)
	if !ok {
		return
	}

	summary, err := h.reportingSvc.GetWalletSummary(c.Request.Context(), actor, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletSummaryResponse(summary))
}

// Recharge handles POST /api/v1/wallets/:token/recharge.
func (h *WalletHandler) Recharge(c *gin.Context) {
	h.mutate(c, h.ledgerSvc.Recharge)
}

// Charge handles POST /api/v1/wallets/:token/charge.
func (h *WalletHandler) Charge(c *gin.Context) {
	h.mutate(c, h.ledgerSvc.Charge)
}

type ledgerOp func(ctx context.Context, req ports.LedgerRequest) (*domain.Transaction, error)

func (h *WalletHandler) mutate(c *gin.Context, op ledgerOp) {
	actor, token, ok := identityAndToken(c)
	if !ok {
		return
	}

	var headers dto.LedgerHeaders
	if err := c.ShouldBindHeader(&headers); err != nil {
		response.Error(c, apperror.Validation("invalid Idempotency-Key header"))
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	txn, err := op(c.Request.Context(), ports.LedgerRequest{
		Actor:          actor,
		Token:          token,
		Amount:         req.Amount,
		IdempotencyKey: headers.IdempotencyKey,
		ClientIP:       c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}

// identity writes 401 and returns false when no identity was resolved.
func identity(c *gin.Context) (domain.Identity, bool) {
	actor, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return actor, ok
}

// identityAndToken also parses the :token path segment. A malformed token
// cannot name any wallet and is reported as not found.
func identityAndToken(c *gin.Context) (domain.Identity, uuid.UUID, bool) {
	actor, ok := identity(c)
	if !ok {
		return actor, uuid.Nil, false
	}
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, apperror.ErrWalletNotFound())
		return actor, uuid.Nil, false
	}
	return actor, token, true
}
