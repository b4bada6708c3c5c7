package contracts

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/savings-ledger/internal/chain"
	"github.com/example/savings-ledger/internal/chain/chaintest"
)

const (
	account     = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	savingsAddr = "0x1111111111111111111111111111111111111111"
	circleAddr  = "0x2222222222222222222222222222222222222222"
	factoryAddr = "0x3333333333333333333333333333333333333333"
)

func TestSavings_PrimaryBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers balances", func(t *testing.T) {
		backend := chaintest.NewBackend()
		c := backend.Deploy(savingsAddr, map[string]chaintest.Handler{
			MethodBalances:    chaintest.Returns(chaintest.Uint(7000000)),
			MethodUserBalance: chaintest.Returns(chaintest.Uint(1)),
		})
		s, err := OpenSavings(ctx, chain.NewReader(backend, zerolog.Nop()), savingsAddr)
		require.NoError(t, err)

		bal, err := s.PrimaryBalance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, int64(7000000), bal.Int64())
		assert.Equal(t, []string{MethodBalances}, c.Calls())
	})

	t.Run("falls through to userBalance", func(t *testing.T) {
		backend := chaintest.NewBackend()
		backend.Deploy(savingsAddr, map[string]chaintest.Handler{
			MethodUserBalance: chaintest.Returns(chaintest.Uint(3)),
		})
		s, err := OpenSavings(ctx, chain.NewReader(backend, zerolog.Nop()), savingsAddr)
		require.NoError(t, err)

		method, ok := s.BalanceAccessor()
		assert.True(t, ok)
		assert.Equal(t, MethodUserBalance, method)

		bal, err := s.PrimaryBalance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, int64(3), bal.Int64())
	})

	t.Run("no accessor", func(t *testing.T) {
		backend := chaintest.NewBackend()
		backend.Deploy(savingsAddr, map[string]chaintest.Handler{})
		s, err := OpenSavings(ctx, chain.NewReader(backend, zerolog.Nop()), savingsAddr)
		require.NoError(t, err)

		_, err = s.PrimaryBalance(ctx, account)
		assert.ErrorIs(t, err, ErrNoBalanceAccessor)
	})
}

func TestSavings_History(t *testing.T) {
	ctx := context.Background()
	backend := chaintest.NewBackend()
	backend.Deploy(savingsAddr, map[string]chaintest.Handler{
		MethodSavingHistory: chaintest.Returns(chaintest.Entries(
			chaintest.Entry(5000000, 1700000000, "0xabc1"),
			chaintest.Entry(1000000, 0, ""),
		)),
		MethodWithdrawalHistory: chaintest.Returns([]any{}),
	})
	s, err := OpenSavings(ctx, chain.NewReader(backend, zerolog.Nop()), savingsAddr)
	require.NoError(t, err)

	saves, err := s.SavingHistory(ctx, account)
	require.NoError(t, err)
	require.Len(t, saves, 2)
	assert.Equal(t, int64(5000000), saves[0].Amount.Int64())
	assert.Equal(t, int64(1700000000), saves[0].Timestamp)
	assert.Equal(t, "0xabc1", saves[0].TxID)
	assert.Equal(t, int64(0), saves[1].Timestamp)

	withdrawals, err := s.WithdrawalHistory(ctx, account)
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
}

func TestDecodeRecords_Invalid(t *testing.T) {
	_, err := DecodeRecords("nope")
	assert.Error(t, err)

	_, err = DecodeRecords([]any{map[string]any{"timestamp": chaintest.Uint(1)}})
	assert.ErrorContains(t, err, "amount")

	_, err = DecodeRecords([]any{42})
	assert.ErrorContains(t, err, "entry 0")
}

func TestCircle_Reads(t *testing.T) {
	ctx := context.Background()
	backend := chaintest.NewBackend()
	backend.Deploy(circleAddr, map[string]chaintest.Handler{
		MethodContributionProgress: chaintest.Returns(chaintest.Uint(3), chaintest.Uint(3000000)),
		MethodCircleDetails: chaintest.Returns(map[string]any{
			"name":               "Market Women",
			"weeklyContribution": chaintest.Uint(1000000),
			"maxMembers":         chaintest.Uint(4),
		}),
		MethodCurrentWeek: chaintest.Returns(chaintest.Uint(3)),
		MethodMembers:     chaintest.Returns([]any{account, savingsAddr}),
	})
	c, err := OpenCircle(ctx, chain.NewReader(backend, zerolog.Nop()), circleAddr)
	require.NoError(t, err)

	p, err := c.Progress(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ContributedWeeks)
	assert.Equal(t, int64(3000000), p.TotalContribution.Int64())

	d, err := c.Details(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Market Women", d.Name)
	assert.Equal(t, int64(1000000), d.WeeklyContribution.Int64())
	assert.Equal(t, int64(4), d.MaxMembers)

	week, err := c.CurrentWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), week)

	members, err := c.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{account, savingsAddr}, members)
}

func TestCircle_ProgressShortOutput(t *testing.T) {
	ctx := context.Background()
	backend := chaintest.NewBackend()
	backend.Deploy(circleAddr, map[string]chaintest.Handler{
		MethodContributionProgress: chaintest.Returns(chaintest.Uint(3)),
	})
	c, err := OpenCircle(ctx, chain.NewReader(backend, zerolog.Nop()), circleAddr)
	require.NoError(t, err)

	_, err = c.Progress(ctx, account)
	assert.Error(t, err)
}

func TestFactory_CirclesDropsMalformed(t *testing.T) {
	ctx := context.Background()
	backend := chaintest.NewBackend()
	backend.Deploy(factoryAddr, map[string]chaintest.Handler{
		MethodUserCircles: chaintest.Returns([]any{
			circleAddr,
			"0x1234",
			"not-an-address",
			17,
			savingsAddr,
		}),
	})
	f, err := OpenFactory(ctx, chain.NewReader(backend, zerolog.Nop()), factoryAddr, zerolog.Nop())
	require.NoError(t, err)

	circles := f.Circles(ctx, account)
	assert.Equal(t, []string{circleAddr, savingsAddr}, circles)
}

func TestFactory_CirclesFailureIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := chaintest.NewBackend()
	backend.Deploy(factoryAddr, map[string]chaintest.Handler{
		MethodUserCircles: chaintest.Fails(chaintest.ErrReverted),
	})
	f, err := OpenFactory(ctx, chain.NewReader(backend, zerolog.Nop()), factoryAddr, zerolog.Nop())
	require.NoError(t, err)

	circles := f.Circles(ctx, account)
	assert.NotNil(t, circles)
	assert.Empty(t, circles)
}

func TestOpen_NotDeployed(t *testing.T) {
	ctx := context.Background()
	backend := chaintest.NewBackend()
	reader := chain.NewReader(backend, zerolog.Nop())

	_, err := OpenSavings(ctx, reader, savingsAddr)
	assert.ErrorIs(t, err, chain.ErrNotDeployed)
	_, err = OpenCircle(ctx, reader, circleAddr)
	assert.ErrorIs(t, err, chain.ErrNotDeployed)
	_, err = OpenFactory(ctx, reader, factoryAddr, zerolog.Nop())
	assert.ErrorIs(t, err, chain.ErrNotDeployed)
}
