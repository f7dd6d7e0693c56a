package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"khoroch/internal/core"
	"khoroch/internal/prefs"
	"khoroch/internal/prefs/memory"
	"khoroch/internal/storage"
)

func TestAddWallet(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	w, err := s.wallets.AddWallet(ctx, NewWallet{Name: "  Savings ", InitialAmount: dec(250)})
	if err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	if w.Name != "Savings" || w.Type != core.DefaultWalletType || !w.IsActive {
		t.Fatalf("unexpected defaults: %+v", w)
	}

	got, err := s.wallets.GetWalletByID(ctx, w.ID)
	if err != nil || got == nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !got.InitialAmount.Equal(dec(250)) || !got.CurrentAmount.Equal(dec(250)) {
		t.Fatalf("expected initial == current == 250, got %s/%s", got.InitialAmount, got.CurrentAmount)
	}
	if len(s.wallets.Wallets()) != 1 {
		t.Fatalf("expected wallet appended to list")
	}

	if _, err := s.wallets.AddWallet(ctx, NewWallet{Name: "   "}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestUpdateWalletPatch(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	w, err := s.wallets.AddWallet(ctx, NewWallet{Name: "Cash", Icon: ptr("💵"), InitialAmount: dec(100)})
	if err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	s.mustAdd(t, NewTransaction{Type: "expense", Amount: dec(30), WalletID: w.ID, Date: march(1)})

	renamed, err := s.wallets.UpdateWallet(ctx, w.ID, WalletPatch{Name: ptr("Pocket")})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Pocket" || renamed.Icon == nil || *renamed.Icon != "💵" || !renamed.InitialAmount.Equal(dec(100)) {
		t.Fatalf("rename touched other fields: %+v", renamed)
	}

	rebased, err := s.wallets.UpdateWallet(ctx, w.ID, WalletPatch{InitialAmount: ptr(dec(500)), ClearIcon: true})
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if !rebased.CurrentAmount.Equal(dec(470)) || rebased.Icon != nil {
		t.Fatalf("expected current 470 and no icon, got %s/%v", rebased.CurrentAmount, rebased.Icon)
	}
	if list := s.wallets.Wallets(); list[0].Name != "Pocket" || !list[0].CurrentAmount.Equal(dec(470)) {
		t.Fatalf("list entry not replaced: %+v", list[0])
	}

	if _, err := s.wallets.UpdateWallet(ctx, 99, WalletPatch{Name: ptr("x")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.wallets.UpdateWallet(ctx, w.ID, WalletPatch{Name: ptr("")}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestDeleteWalletCascades(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	keep := s.mustAddWallet(t, "Keep", 0)
	gone := s.mustAddWallet(t, "Gone", 0)
	s.mustAdd(t, NewTransaction{Type: "expense", Amount: dec(5), WalletID: gone.ID, Date: march(1)})
	s.mustAdd(t, NewTransaction{Type: "income", Amount: dec(5), WalletID: keep.ID, Date: march(1)})
	if _, err := s.wallets.GetWallets(ctx); err != nil {
		t.Fatalf("get wallets: %v", err)
	}

	if err := s.wallets.DeleteWallet(ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := s.transactions.ListWalletTransactions(ctx, gone.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected cascade, %d rows remain", len(rows))
	}
	if got, _ := s.wallets.GetWalletByID(ctx, gone.ID); got != nil {
		t.Fatalf("expected deleted wallet to be gone from the cache")
	}
	if list := s.wallets.Wallets(); len(list) != 1 || list[0].ID != keep.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := s.wallets.DeleteWallet(ctx, gone.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteWalletRecomputesTransferDestination(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	from := s.mustAddWallet(t, "Bank", 500)
	to := s.mustAddWallet(t, "Cash", 0)
	s.mustAdd(t, NewTransaction{Type: "transfer", Amount: dec(100), WalletID: from.ID, ToWalletID: &to.ID, Date: march(4)})
	if _, err := s.wallets.GetWallets(ctx); err != nil {
		t.Fatalf("get wallets: %v", err)
	}

	if err := s.wallets.DeleteWallet(ctx, from.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, err := s.repo.Queries().GetWallet(ctx, to.ID)
	if err != nil {
		t.Fatalf("get stored wallet: %v", err)
	}
	if !stored.CurrentAmount.Equal(dec(0)) {
		t.Fatalf("expected stored balance 0, got %s", stored.CurrentAmount)
	}
	cached, err := s.wallets.GetWalletByID(ctx, to.ID)
	if err != nil || cached == nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !cached.CurrentAmount.Equal(dec(0)) {
		t.Fatalf("expected cached balance 0, got %s", cached.CurrentAmount)
	}
	if list := s.wallets.Wallets(); len(list) != 1 || !list[0].CurrentAmount.Equal(dec(0)) {
		t.Fatalf("expected refreshed list entry, got %+v", list)
	}
}

func TestDeleteWalletUpdatesTransactionWindow(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	keep := s.mustAddWallet(t, "Keep", 0)
	gone := s.mustAddWallet(t, "Gone", 0)
	if _, err := s.transactions.GetTransactions(ctx, TransactionQuery{Date: time.Unix(march(1), 0), Page: 1}); err != nil {
		t.Fatalf("select month: %v", err)
	}
	s.mustAdd(t, NewTransaction{Type: "expense", Amount: dec(30), WalletID: gone.ID, Date: march(1)})
	s.mustAdd(t, NewTransaction{Type: "income", Amount: dec(50), WalletID: keep.ID, Date: march(2)})
	transfer := s.mustAdd(t, NewTransaction{Type: "transfer", Amount: dec(10), WalletID: keep.ID, ToWalletID: &gone.ID, Date: march(3)})
	assertTotals(t, s.balance.Summary().Totals, 50, 30)

	if err := s.wallets.DeleteWallet(ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cached := s.transactions.State().Transactions
	if len(cached) != 2 {
		t.Fatalf("expected 2 cached rows, got %d", len(cached))
	}
	for _, tr := range cached {
		if tr.WalletID == gone.ID {
			t.Fatalf("row %d of the deleted wallet is still cached", tr.ID)
		}
		if tr.ID == transfer.ID && tr.ToWalletID != nil {
			t.Fatalf("expected cached transfer destination cleared, got %d", *tr.ToWalletID)
		}
	}
	stored, err := s.transactions.GetTransaction(ctx, transfer.ID)
	if err != nil || stored == nil {
		t.Fatalf("get transfer: %v", err)
	}
	if stored.ToWalletID != nil {
		t.Fatalf("expected stored transfer destination cleared, got %d", *stored.ToWalletID)
	}
	assertTotals(t, s.balance.Summary().Totals, 50, 0)
}

func TestDefaultWalletPreference(t *testing.T) {
	repo, err := storage.Open(filepath.Join(t.TempDir(), "khoroch.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	backends := map[string]prefs.Store{
		"sqlite": repo.Preferences(),
		"memory": memory.New(nil),
	}
	for name, p := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ws := NewWalletStore(repo, p, nil)

			id, err := ws.DefaultWalletID(ctx)
			if err != nil || id != FallbackDefaultWalletID {
				t.Fatalf("expected fallback 1, got %d (%v)", id, err)
			}
			if err := ws.SetDefaultWalletID(ctx, 404); !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			w, err := ws.AddWallet(ctx, NewWallet{Name: "Default " + name})
			if err != nil {
				t.Fatalf("add wallet: %v", err)
			}
			if err := ws.SetDefaultWalletID(ctx, w.ID); err != nil {
				t.Fatalf("set default: %v", err)
			}
			if id, _ := ws.DefaultWalletID(ctx); id != w.ID {
				t.Fatalf("expected default %d, got %d", w.ID, id)
			}

			if err := ws.DeleteWallet(ctx, w.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if id, _ := ws.DefaultWalletID(ctx); id != FallbackDefaultWalletID {
				t.Fatalf("expected preference cleared, got %d", id)
			}
		})
	}
}

func TestMalformedDefaultWalletFallsBack(t *testing.T) {
	s := newTestStores(t)
	p := memory.New(map[string]string{prefs.KeyDefaultWallet: "abc"})
	ws := NewWalletStore(s.repo, p, nil)

	id, err := ws.DefaultWalletID(context.Background())
	if err != nil || id != FallbackDefaultWalletID {
		t.Fatalf("expected fallback, got %d (%v)", id, err)
	}
}

func TestGetWalletByIDUsesCache(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	w := s.mustAddWallet(t, "Cash", 0)
	s.wallets.Invalidate()

	for i := 0; i < 3; i++ {
		got, err := s.wallets.GetWalletByID(ctx, w.ID)
		if err != nil || got == nil || got.ID != w.ID {
			t.Fatalf("lookup %d: %v %v", i, got, err)
		}
	}
	stats := s.wallets.CacheStats()
	if stats.Misses != 1 || stats.Hits != 2 {
		t.Fatalf("expected 1 miss and 2 hits, got %+v", stats)
	}

	if got, err := s.wallets.GetWalletByID(ctx, 404); err != nil || got != nil {
		t.Fatalf("expected nil for a missing wallet, got %v %v", got, err)
	}
}
