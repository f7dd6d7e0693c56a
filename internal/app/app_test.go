package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"khoroch/internal/config"
	"khoroch/internal/prefs"
	"khoroch/internal/services"
)

func testOptions(t *testing.T, backend PrefsBackend) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		SQLiteDBPath:         filepath.Join(dir, "khoroch.db"),
		Location:             time.UTC,
		PageSize:             10,
		WalletCacheSize:      16,
		WalletCacheTTL:       time.Minute,
		CacheCleanupInterval: time.Second,
		PrefsBackend:         backend,
		BackupDir:            filepath.Join(dir, "backups"),
	}
}

func TestPrefsBackend_IsValid(t *testing.T) {
	for _, b := range []PrefsBackend{SQLitePrefs, MemoryPrefs} {
		if !b.IsValid() {
			t.Errorf("%s should be valid", b)
		}
	}
	if PrefsBackend("redis").IsValid() {
		t.Errorf("redis should not be valid")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}

	cfg := &config.Config{SQLiteDBPath: "x.db", Timezone: "UTC", PrefsBackend: "memory", PageSize: 20}
	opts, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if opts.PrefsBackend != MemoryPrefs || opts.Location != time.UTC || opts.PageSize != 20 {
		t.Fatalf("unexpected options %+v", opts)
	}

	cfg.PrefsBackend = "redis"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewWiresStores(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testOptions(t, SQLitePrefs), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	w, err := a.Wallets.AddWallet(ctx, services.NewWallet{Name: "Cash", InitialAmount: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	if _, err := a.Transactions.AddTransaction(ctx, services.NewTransaction{
		Type: "expense", Amount: decimal.NewFromInt(40), WalletID: w.ID,
		Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC).Unix(),
	}); err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	if !a.Balance.Summary().Expense.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance store to be recomputed, got %+v", a.Balance.Summary())
	}
	got, _ := a.Wallets.GetWalletByID(ctx, w.ID)
	if got == nil || !got.CurrentAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected wallet store to be refreshed, got %+v", got)
	}

	if err := a.Wallets.SetDefaultWalletID(ctx, w.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if v, ok, _ := a.Prefs.Get(ctx, prefs.KeyDefaultWallet); !ok || v != "1" {
		t.Fatalf("expected sqlite preference to be written, got %q", v)
	}
}

func TestDeleteWalletRefreshesTransactionsAndBalance(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testOptions(t, SQLitePrefs), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	w, err := a.Wallets.AddWallet(ctx, services.NewWallet{Name: "Cash"})
	if err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	march := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := a.Transactions.GetTransactions(ctx, services.TransactionQuery{Date: march, Page: 1}); err != nil {
		t.Fatalf("get transactions: %v", err)
	}
	if _, err := a.Transactions.AddTransaction(ctx, services.NewTransaction{
		Type: "expense", Amount: decimal.NewFromInt(40), WalletID: w.ID, Date: march.Unix(),
	}); err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	if err := a.Wallets.DeleteWallet(ctx, w.ID); err != nil {
		t.Fatalf("delete wallet: %v", err)
	}
	if n := len(a.Transactions.State().Transactions); n != 0 {
		t.Fatalf("expected cached window emptied, got %d rows", n)
	}
	if !a.Balance.Summary().Expense.IsZero() {
		t.Fatalf("expected summary recomputed, got %+v", a.Balance.Summary())
	}
}

func TestMemoryPrefsFromFile(t *testing.T) {
	opts := testOptions(t, MemoryPrefs)
	opts.PrefsFile = filepath.Join(t.TempDir(), "prefs.env")
	if err := os.WriteFile(opts.PrefsFile, []byte("# defaults\ndefault-wallet-id=3\n"), 0644); err != nil {
		t.Fatalf("write prefs file: %v", err)
	}

	a, err := New(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	id, err := a.Wallets.DefaultWalletID(context.Background())
	if err != nil || id != 3 {
		t.Fatalf("expected default wallet 3 from file, got %d (%v)", id, err)
	}
}

func TestBackupRestoreResetsViews(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testOptions(t, SQLitePrefs), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Wallets.AddWallet(ctx, services.NewWallet{Name: "Before"}); err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	path, err := a.WriteBackup(ctx)
	if err != nil {
		t.Fatalf("write backup: %v", err)
	}
	if filepath.Dir(path) != a.BackupDir() {
		t.Fatalf("backup written outside %s: %s", a.BackupDir(), path)
	}

	if _, err := a.Wallets.AddWallet(ctx, services.NewWallet{Name: "After"}); err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	if _, err := a.RestoreBackup(ctx, path); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n := len(a.Wallets.Wallets()); n != 0 {
		t.Fatalf("expected wallet list dropped after restore, got %d", n)
	}
	wallets, err := a.Wallets.GetWallets(ctx)
	if err != nil {
		t.Fatalf("get wallets: %v", err)
	}
	if len(wallets) != 1 || wallets[0].Name != "Before" {
		t.Fatalf("unexpected wallets after restore: %+v", wallets)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := testOptions(t, "redis")
	if _, err := New(context.Background(), opts, nil); err == nil {
		t.Fatalf("expected error for invalid backend")
	}
}
