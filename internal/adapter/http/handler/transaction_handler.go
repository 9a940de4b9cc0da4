package handler

import (
	"wallet-service/internal/adapter/http/dto"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler serves the caller's transaction history.
type TransactionHandler struct {
	walletSvc ports.WalletService
}

func NewTransactionHandler(walletSvc ports.WalletService) *TransactionHandler {
	return &TransactionHandler{walletSvc: walletSvc}
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	txns, err := h.walletSvc.ListTransactions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, dto.NewTransactionList(txns))
}

// Get handles GET /api/v1/transactions/:id. Entries outside the caller's
// transaction list, and malformed ids, are reported as not found.
func (h *TransactionHandler) Get(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Transaction"))
		return
	}

	txn, err := h.walletSvc.GetTransaction(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}
