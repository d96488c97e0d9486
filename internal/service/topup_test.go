package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
)

func TestCreateTopupRecordsPendingPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "wallet top-up")
	require.NoError(t, err)
	require.NotEmpty(t, resp.OrderCode)
	require.NotEmpty(t, resp.CheckoutURL)
	require.Equal(t, domain.StatusPending, resp.Status)

	// Money is not spendable until the gateway confirms.
	requireAmount(t, 0, env.available(t, rider.ID))

	group := env.groupEntries(t, resp.GroupID)
	require.Len(t, group, 2)
	for _, e := range group {
		require.Equal(t, domain.EntryTypeTopup, e.Type)
		require.Equal(t, domain.StatusPending, e.Status)
		require.Equal(t, resp.OrderCode, e.PspRef)
	}
}

func TestTopupGatewayFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.gw.IntentErr = gateway.ErrUnavailable
	rider := env.newWallet(t)

	_, err := env.topups.CreateTopup(context.Background(), rider.ID, domain.VND(500000), "top-up")
	require.ErrorIs(t, err, gateway.ErrUnavailable)

	entries, readErr := env.store.Reader().EntriesByWallet(context.Background(), rider.ID)
	require.NoError(t, readErr)
	require.Empty(t, entries)
}

func TestTopupResolvePaidCreditsWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusPaid, "", ""))
	requireAmount(t, 500000, env.available(t, rider.ID))

	for _, e := range env.groupEntries(t, resp.GroupID) {
		require.Equal(t, domain.StatusSuccess, e.Status)
	}
}

func TestTopupResolveProcessingCreditsWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	// The gateway reports PROCESSING once the charge is collected; for a
	// top-up that settles the credit just like PAID.
	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusProcessing, "", ""))
	requireAmount(t, 500000, env.available(t, rider.ID))

	for _, e := range env.groupEntries(t, resp.GroupID) {
		require.Equal(t, domain.StatusSuccess, e.Status)
	}
}

func TestTopupResolveExpiredFailsEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusExpired, "", "checkout expired"))
	requireAmount(t, 0, env.available(t, rider.ID))

	for _, e := range env.groupEntries(t, resp.GroupID) {
		require.Equal(t, domain.StatusFailed, e.Status)
	}
}

func TestTopupResolveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusPaid, "", ""))
	// A second confirmation without a dedup marker is a harmless no-op.
	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusPaid, "", ""))

	requireAmount(t, 500000, env.available(t, rider.ID))
}

func TestTopupResolveDuplicateMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	marker := "WHK:deadbeef"
	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusPaid, marker, ""))
	err = env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusPaid, marker, "")
	require.ErrorIs(t, err, models.ErrDuplicateDelivery)

	requireAmount(t, 500000, env.available(t, rider.ID))
}

func TestTopupResolveAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	err = env.topups.Resolve(ctx, resp.OrderCode, domain.VND(400000), gateway.StatusPaid, "", "")
	require.ErrorIs(t, err, models.ErrPayloadMismatch)
	requireAmount(t, 0, env.available(t, rider.ID))
}

func TestTopupResolvePrefixAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	// 50000 is a string prefix of the recorded 500000; the comparison must be
	// numeric, not textual.
	err = env.topups.Resolve(ctx, resp.OrderCode, domain.VND(50000), gateway.StatusPaid, "", "")
	require.ErrorIs(t, err, models.ErrPayloadMismatch)
	requireAmount(t, 0, env.available(t, rider.ID))

	for _, e := range env.groupEntries(t, resp.GroupID) {
		require.Equal(t, domain.StatusPending, e.Status)
	}
}

func TestTopupResolveUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	err := env.topups.Resolve(context.Background(), "no-such-order", decimal.Zero, gateway.StatusPaid, "", "")
	require.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestTopupFailureThenNeverDowngrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)
	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusPaid, "", ""))

	// A stale PROCESSING notification after settlement is ignored.
	require.NoError(t, env.topups.Resolve(ctx, resp.OrderCode, domain.VND(500000), gateway.StatusProcessing, "", ""))
	requireAmount(t, 500000, env.available(t, rider.ID))
}
