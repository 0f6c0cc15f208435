package config

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceType says whether an account's natural positive balance grows
// with debits or with credits.
type BalanceType string

const (
	BalanceTypeDebit  BalanceType = "DEBIT"
	BalanceTypeCredit BalanceType = "CREDIT"
)

// UnknownAccountError is returned when an operation references an account
// that is not present in the accounting configuration.
type UnknownAccountError struct {
	Account string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account %q", e.Account)
}

// UnknownAccountTypeError is returned when an account references an account
// type that is not present in the accounting configuration.
type UnknownAccountTypeError struct {
	AccountType string
}

func (e *UnknownAccountTypeError) Error() string {
	return fmt.Sprintf("unknown account type %q", e.AccountType)
}

// AccountType declares the balance orientation for a family of accounts.
type AccountType struct {
	BalanceType BalanceType `json:"balance_type"`
}

// Account binds an account name to its account type.
type Account struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
}

// Rule is a named posting template: recording against a rule books the
// configured debit/credit pair with the rule's narration prefix.
type Rule struct {
	Narration string `json:"narration"`
	DrAccount string `json:"dr_account"`
	CrAccount string `json:"cr_account"`
}

// AccountingConfig is the validated accounting configuration shared by the
// journal, ledger and aging components. It is constructed once and must not
// be mutated afterwards; all components hold it by reference.
type AccountingConfig struct {
	AccountTypes map[string]AccountType `json:"account_types"`
	Accounts     map[string]Account     `json:"accounts"`
	Rules        map[string]Rule        `json:"rules"`

	// Tolerance is the epsilon used by the aging engine when deciding
	// whether a tracked amount is fully paid. Zero means "use the
	// engine default".
	Tolerance decimal.Decimal `json:"tolerance"`
}

// New validates the given configuration and returns it ready for use.
func New(cfg AccountingConfig) (*AccountingConfig, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads a JSON accounting configuration document and validates it.
func Load(r io.Reader) (*AccountingConfig, error) {
	var cfg AccountingConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode accounting config: %w", err)
	}
	return New(cfg)
}

func validate(cfg *AccountingConfig) error {
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("accounting config declares no accounts")
	}
	for name, at := range cfg.AccountTypes {
		if at.BalanceType != BalanceTypeDebit && at.BalanceType != BalanceTypeCredit {
			return fmt.Errorf("account type %q: balance_type must be DEBIT or CREDIT, got %q", name, at.BalanceType)
		}
	}
	for name, account := range cfg.Accounts {
		if _, ok := cfg.AccountTypes[account.Type]; !ok {
			return fmt.Errorf("account %q: %w", name, &UnknownAccountTypeError{AccountType: account.Type})
		}
	}
	for name, rule := range cfg.Rules {
		if _, ok := cfg.Accounts[rule.DrAccount]; !ok {
			return fmt.Errorf("rule %q: %w", name, &UnknownAccountError{Account: rule.DrAccount})
		}
		if _, ok := cfg.Accounts[rule.CrAccount]; !ok {
			return fmt.Errorf("rule %q: %w", name, &UnknownAccountError{Account: rule.CrAccount})
		}
	}
	if cfg.Tolerance.IsNegative() {
		return fmt.Errorf("tolerance must not be negative, got %s", cfg.Tolerance)
	}
	return nil
}

// AccountNames returns every configured account name in sorted order.
func (c *AccountingConfig) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for name := range c.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BalanceTypeOf resolves the balance orientation of an account. Callers on
// hot paths should resolve it once and keep the result.
func (c *AccountingConfig) BalanceTypeOf(account string) (BalanceType, error) {
	acct, ok := c.Accounts[account]
	if !ok {
		return "", &UnknownAccountError{Account: account}
	}
	at, ok := c.AccountTypes[acct.Type]
	if !ok {
		return "", &UnknownAccountTypeError{AccountType: acct.Type}
	}
	return at.BalanceType, nil
}
