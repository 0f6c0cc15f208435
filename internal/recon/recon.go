package recon

import (
	"fmt"
	"time"

	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/ledger"
)

// ControlAccount receives the offsetting leg of every reconciliation
// adjustment. It must be configured; it nets to zero when the two ledgers
// are internally balanced.
const ControlAccount = "RECONCILE_CONTROL"

// Reconcile books per-account adjustments into the closed ledger so that
// its balances converge on the current ledger's. It errors if the ledgers
// already match, and verifies afterwards that they do (control account at
// zero in both).
func Reconcile(cfg *config.AccountingConfig, closed, current *ledger.Ledger, timestamp time.Time) error {
	matching, err := isMatching(cfg, closed, current)
	if err != nil {
		return err
	}
	if matching {
		return fmt.Errorf("ledgers already match, nothing to reconcile")
	}

	for _, account := range cfg.AccountNames() {
		if account == ControlAccount {
			continue
		}
		closedBalance, err := closed.Balance(account)
		if err != nil {
			return err
		}
		currentBalance, err := current.Balance(account)
		if err != nil {
			return err
		}
		diff := currentBalance.Sub(closedBalance)
		if diff.IsZero() {
			continue
		}

		balanceType, err := cfg.BalanceTypeOf(account)
		if err != nil {
			return err
		}
		drAccount, crAccount := account, ControlAccount
		if balanceType == config.BalanceTypeCredit {
			drAccount, crAccount = ControlAccount, account
		}
		if diff.IsNegative() {
			// Adjustment amounts are always posted positive; a shrinking
			// balance flips the legs instead.
			drAccount, crAccount = crAccount, drAccount
			diff = diff.Neg()
		}
		if err := closed.Adjust(drAccount, crAccount, diff, timestamp); err != nil {
			return err
		}
	}

	matching, err = isMatching(cfg, closed, current)
	if err != nil {
		return err
	}
	if !matching {
		return fmt.Errorf("ledgers still differ after reconciliation")
	}
	return nil
}

func isMatching(cfg *config.AccountingConfig, closed, current *ledger.Ledger) (bool, error) {
	for _, account := range cfg.AccountNames() {
		closedBalance, err := closed.Balance(account)
		if err != nil {
			return false, err
		}
		currentBalance, err := current.Balance(account)
		if err != nil {
			return false, err
		}
		if account == ControlAccount {
			if !closedBalance.IsZero() || !currentBalance.IsZero() {
				return false, nil
			}
			continue
		}
		if !closedBalance.Equal(currentBalance) {
			return false, nil
		}
	}
	return true, nil
}
