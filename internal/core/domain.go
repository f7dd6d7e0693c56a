package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

// DefaultWalletType is used when a wallet is created without a type.
const DefaultWalletType = "Cash"

type (
	TransactionType string

	Wallet struct {
		ID            int64
		Name          string
		Avatar        *string
		Type          string // free-form: Cash, Bank, Credit...
		Icon          *string
		Color         *string
		SortOrder     int64
		InitialAmount decimal.Decimal
		CurrentAmount decimal.Decimal
		IsActive      bool
		CreatedAt     int64 // unix seconds
		UpdatedAt     int64
	}

	// Category is persisted and backed up but not used by the list and
	// aggregate paths yet.
	Category struct {
		ID        int64
		Name      string
		Type      TransactionType // income or expense
		Icon      *string
		Color     *string
		IsActive  bool
		CreatedAt int64
		UpdatedAt int64
	}

	Transaction struct {
		ID         int64
		Type       TransactionType
		Amount     decimal.Decimal // magnitude, sign implied by Type
		WalletID   int64
		ToWalletID *int64 // transfers only
		CategoryID *int64
		Date       int64 // unix seconds, when it happened
		Note       *string
		Attachment *string
		CreatedAt  int64
		UpdatedAt  int64
	}
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidWallet = errors.New("invalid wallet")
	ErrInvalidDate   = errors.New("invalid date")
)

// ParseTransactionType accepts display-case values ("Income", " EXPENSE ")
// and returns the stored lower-case form.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("%w: %q", err, s)
	}
	return t, nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense, Transfer:
		return nil
	default:
		return ErrInvalidType
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ValidateName rejects blank wallet and category names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

// Involves reports whether the transaction moves money in or out of walletID.
func (t Transaction) Involves(walletID int64) bool {
	if t.WalletID == walletID {
		return true
	}
	return t.ToWalletID != nil && *t.ToWalletID == walletID
}

// WalletIDs returns the wallets whose running balance depends on t.
func (t Transaction) WalletIDs() []int64 {
	ids := []int64{t.WalletID}
	if t.ToWalletID != nil && *t.ToWalletID != t.WalletID {
		ids = append(ids, *t.ToWalletID)
	}
	return ids
}
