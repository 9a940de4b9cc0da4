package service

import (
	"context"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	log        zerolog.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	log zerolog.Logger,
) ports.ReportingService {
	return &reportingService{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		log:        log,
	}
}

// GetWalletSummary totals the wallet's successful ledger entries next to its
// stored balance. A summary that does not reconcile is logged.
func (s *reportingService) GetWalletSummary(ctx context.Context, actor domain.Identity, token uuid.UUID) (*domain.WalletSummary, error) {
	wallet, err := findViewableWallet(ctx, s.walletRepo, s.txRepo, actor, token)
	if err != nil {
		return nil, err
	}

	totals, err := s.txRepo.Summarize(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("summarize ledger: %w", err))
	}

	summary := &domain.WalletSummary{
		WalletID:       wallet.ID,
		Token:          wallet.Token,
		Balance:        wallet.Balance,
		TotalRecharged: totals.TotalRecharged,
		TotalCharged:   totals.TotalCharged,
		Entries:        totals.Entries,
	}

	if !summary.Reconciled() {
		s.log.Error().
			Str("wallet_token", wallet.Token.String()).
			Str("balance", wallet.Balance.String()).
			Str("net", summary.Net().String()).
			Msg("wallet balance does not match ledger")
	}

	return summary, nil
}
