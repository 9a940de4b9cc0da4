// Package policy holds the stateless authorization rules for wallet operations.
// Every rule denies identities whose role is not one of the known roles.
package policy

import (
	"wallet-service/internal/core/domain"
	"wallet-service/pkg/apperror"
)

// CanCreateWallet allows any authenticated identity with a valid role.
// The one-wallet-per-merchant rule is enforced by the store, not here.
func CanCreateWallet(actor domain.Identity) error {
	if !actor.Role.Valid() {
		return apperror.ErrUnauthorized()
	}
	return nil
}

// CanRecharge allows only the client that owns the wallet.
func CanRecharge(actor domain.Identity, w *domain.Wallet) error {
	switch actor.Role {
	case domain.RoleClient:
		if w.IsOwnedBy(actor.ID) {
			return nil
		}
	}
	return apperror.ErrUnauthorized()
}

// CanCharge allows a merchant to charge any wallet it does not own.
func CanCharge(actor domain.Identity, w *domain.Wallet) error {
	switch actor.Role {
	case domain.RoleMerchant:
		if !w.IsOwnedBy(actor.ID) {
			return nil
		}
	}
	return apperror.ErrUnauthorized()
}

// CanViewWallet covers the status, ledger and summary views of one wallet.
// hasCharged reports whether the actor has a successful charge on w.
// Denial is reported as not-found so wallet existence does not leak.
func CanViewWallet(actor domain.Identity, w *domain.Wallet, hasCharged bool) error {
	if !actor.Role.Valid() {
		return apperror.ErrWalletNotFound()
	}
	if w.IsOwnedBy(actor.ID) {
		return nil
	}
	if actor.Role == domain.RoleMerchant && hasCharged {
		return nil
	}
	return apperror.ErrWalletNotFound()
}

// NeedsChargeHistory reports whether CanViewWallet depends on the actor's
// charge history for w, so callers can skip the ledger lookup otherwise.
func NeedsChargeHistory(actor domain.Identity, w *domain.Wallet) bool {
	return actor.Role == domain.RoleMerchant && !w.IsOwnedBy(actor.ID)
}

// CanViewTransaction allows the owner of the entry's wallet and the merchant
// that initiated a charge, matching the transaction list. ownsWallet reports
// whether actor owns the wallet the entry belongs to.
func CanViewTransaction(actor domain.Identity, t *domain.Transaction, ownsWallet bool) error {
	if !actor.Role.Valid() {
		return apperror.ErrNotFound("Transaction")
	}
	if ownsWallet || t.IsChargedBy(actor.ID) {
		return nil
	}
	return apperror.ErrNotFound("Transaction")
}

// CanListClientWallets allows merchants only.
func CanListClientWallets(actor domain.Identity) error {
	if actor.Role != domain.RoleMerchant {
		return apperror.ErrUnauthorized()
	}
	return nil
}

// CanListTransactions allows any identity with a valid role. The visible set
// is the actor's own wallets plus, for merchants, the charges they initiated.
func CanListTransactions(actor domain.Identity) error {
	if !actor.Role.Valid() {
		return apperror.ErrUnauthorized()
	}
	return nil
}
