package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/repository"
)

// testEnv assembles the services over the in-memory store. No cache, no
// network: the mock gateway answers deterministically.
type testEnv struct {
	store    *repository.MemoryStore
	gw       *gateway.MockGateway
	wallets  *WalletService
	balances *BalanceCalculator
	topups   *TopupService
	payouts  *PayoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	gw := gateway.NewMockGateway()
	return &testEnv{
		store:    store,
		gw:       gw,
		wallets:  NewWalletService(store, nil),
		balances: NewBalanceCalculator(store, nil),
		topups:   NewTopupService(store, gw, nil),
		payouts:  NewPayoutService(store, gw, nil),
	}
}

func (env *testEnv) newWallet(t *testing.T) *models.Wallet {
	t.Helper()
	w, err := env.wallets.CreateWallet(context.Background(), uuid.New())
	require.NoError(t, err)
	return w
}

// fundWallet runs a full top-up: create the intent, then settle it the way a
// gateway confirmation would.
func (env *testEnv) fundWallet(t *testing.T, walletID uuid.UUID, amount decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	resp, err := env.topups.CreateTopup(ctx, walletID, amount, "test funding")
	require.NoError(t, err)
	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, amount, gateway.StatusPaid, "", ""))
}

func (env *testEnv) available(t *testing.T, walletID uuid.UUID) decimal.Decimal {
	t.Helper()
	avail, err := env.balances.Available(context.Background(), walletID)
	require.NoError(t, err)
	return avail
}

func (env *testEnv) pending(t *testing.T, walletID uuid.UUID) decimal.Decimal {
	t.Helper()
	pending, err := env.balances.Pending(context.Background(), walletID)
	require.NoError(t, err)
	return pending
}

func (env *testEnv) groupEntries(t *testing.T, groupID uuid.UUID) []models.LedgerEntry {
	t.Helper()
	entries, err := env.store.Reader().EntriesByGroup(context.Background(), groupID)
	require.NoError(t, err)
	return entries
}

func requireAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, domain.VND(want).Equal(got), "want %d, got %s", want, got)
}
