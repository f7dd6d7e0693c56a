package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionType
		ok   bool
	}{
		{"income", Income, true},
		{"Income", Income, true},
		{" EXPENSE ", Expense, true},
		{"Transfer", Transfer, true},
		{"all", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidType) {
			t.Fatalf("%q expected ErrInvalidType, got %v", tc.in, err)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Cash"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateName("   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestTransactionWalletIDs(t *testing.T) {
	to := int64(2)
	same := int64(1)
	cases := []struct {
		name string
		tx   Transaction
		want []int64
	}{
		{"plain", Transaction{WalletID: 1}, []int64{1}},
		{"transfer", Transaction{WalletID: 1, ToWalletID: &to}, []int64{1, 2}},
		{"self transfer", Transaction{WalletID: 1, ToWalletID: &same}, []int64{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.tx.WalletIDs()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
	tx := Transaction{WalletID: 1, ToWalletID: &to}
	if !tx.Involves(2) || tx.Involves(3) {
		t.Fatalf("unexpected Involves result")
	}
}

func TestNewTotals(t *testing.T) {
	got := NewTotals(decimal.NewFromInt(0), decimal.NewFromInt(200))
	if !got.Balance.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected balance -200, got %s", got.Balance)
	}
}
