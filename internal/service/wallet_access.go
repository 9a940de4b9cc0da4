package service

import (
	"context"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/policy"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
)

// findViewableWallet loads a wallet by token straight from the store and
// applies the view policy.
func findViewableWallet(
	ctx context.Context,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	actor domain.Identity,
	token uuid.UUID,
) (*domain.Wallet, error) {
	wallet, err := walletRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if err := authorizeView(ctx, txRepo, actor, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// authorizeView consults the charge history only when the policy needs it.
func authorizeView(ctx context.Context, txRepo ports.TransactionRepository, actor domain.Identity, wallet *domain.Wallet) error {
	hasCharged := false
	if policy.NeedsChargeHistory(actor, wallet) {
		charged, err := txRepo.HasMerchantCharged(ctx, wallet.ID, actor.ID)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("check charge history: %w", err))
		}
		hasCharged = charged
	}
	return policy.CanViewWallet(actor, wallet, hasCharged)
}
