package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x1111111111111111111111111111111111111111"

type stubContract struct {
	address string
	methods map[string]func(ctx context.Context, params ...any) ([]any, error)
	calls   atomic.Int32
}

func (c *stubContract) Address() string { return c.address }

func (c *stubContract) HasMethod(name string) bool {
	_, ok := c.methods[name]
	return ok
}

func (c *stubContract) Call(ctx context.Context, method string, params ...any) ([]any, error) {
	c.calls.Add(1)
	return c.methods[method](ctx, params...)
}

type stubBackend struct {
	code     map[string]bool
	codeErr  error
	contract Contract
	binds    int
}

func (b *stubBackend) HasCode(_ context.Context, address string) (bool, error) {
	if b.codeErr != nil {
		return false, b.codeErr
	}
	return b.code[address], nil
}

func (b *stubBackend) Bind(string, Interface) (Contract, error) {
	b.binds++
	return b.contract, nil
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress(testAddr))
	assert.True(t, IsAddress("0xAbCdEf0123456789abcdef0123456789ABCDEF01"))
	assert.False(t, IsAddress(""))
	assert.False(t, IsAddress("1111111111111111111111111111111111111111"))
	assert.False(t, IsAddress("0x11111"))
	assert.False(t, IsAddress("0x111111111111111111111111111111111111111g"))
}

func TestReader_Open(t *testing.T) {
	log := zerolog.Nop()
	c := &stubContract{address: testAddr}

	t.Run("deployed", func(t *testing.T) {
		backend := &stubBackend{code: map[string]bool{testAddr: true}, contract: c}
		got, err := NewReader(backend, log).Open(context.Background(), testAddr, SavingsInterface)
		require.NoError(t, err)
		assert.Equal(t, testAddr, got.Address())
	})

	t.Run("no bytecode", func(t *testing.T) {
		backend := &stubBackend{code: map[string]bool{}, contract: c}
		_, err := NewReader(backend, log).Open(context.Background(), testAddr, SavingsInterface)
		assert.ErrorIs(t, err, ErrNotDeployed)
		assert.Equal(t, 0, backend.binds)
	})

	t.Run("bytecode check fails", func(t *testing.T) {
		backend := &stubBackend{codeErr: errors.New("rpc down"), contract: c}
		_, err := NewReader(backend, log).Open(context.Background(), testAddr, SavingsInterface)
		assert.ErrorIs(t, err, ErrNotDeployed)
	})

	t.Run("malformed address", func(t *testing.T) {
		backend := &stubBackend{code: map[string]bool{"0x12": true}, contract: c}
		_, err := NewReader(backend, log).Open(context.Background(), "0x12", SavingsInterface)
		assert.ErrorIs(t, err, ErrNotDeployed)
	})
}

func TestReader_Try(t *testing.T) {
	log := zerolog.Nop()
	c := &stubContract{
		address: testAddr,
		methods: map[string]func(context.Context, ...any) ([]any, error){
			"balances": func(_ context.Context, params ...any) ([]any, error) {
				return []any{big.NewInt(42)}, nil
			},
			"broken": func(context.Context, ...any) ([]any, error) {
				return nil, errors.New("execution reverted")
			},
		},
	}
	r := NewReader(&stubBackend{}, log)

	out, err := r.Try(context.Background(), c, "balances", time.Second, testAddr)
	require.NoError(t, err)
	assert.Equal(t, []any{big.NewInt(42)}, out)

	_, err = r.Try(context.Background(), c, "broken", time.Second)
	assert.ErrorContains(t, err, "execution reverted")

	before := c.calls.Load()
	_, err = r.Try(context.Background(), c, "missing", time.Second)
	assert.ErrorIs(t, err, ErrMethodNotFound)
	assert.Equal(t, before, c.calls.Load())
}

func TestRead_TimeoutReturnsDefault(t *testing.T) {
	cancelled := make(chan struct{})
	c := &stubContract{
		address: testAddr,
		methods: map[string]func(context.Context, ...any) ([]any, error){
			"hang": func(ctx context.Context, _ ...any) ([]any, error) {
				<-ctx.Done()
				close(cancelled)
				return nil, ctx.Err()
			},
		},
	}

	fired := make(chan time.Time, 1)
	var requested time.Duration
	timer := func(d time.Duration) <-chan time.Time {
		requested = d
		fired <- time.Time{}
		return fired
	}

	r := NewReader(&stubBackend{}, zerolog.Nop(), WithTimer(timer))
	got := Read(context.Background(), r, c, "hang", 10*time.Millisecond, "default", func(out []any) (string, error) {
		return "decoded", nil
	})

	assert.Equal(t, "default", got)
	assert.Equal(t, 10*time.Millisecond, requested)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed-out call was not cancelled")
	}
}

func TestRead_DecodeFailureReturnsDefault(t *testing.T) {
	c := &stubContract{
		address: testAddr,
		methods: map[string]func(context.Context, ...any) ([]any, error){
			"getCurrentWeek": func(context.Context, ...any) ([]any, error) {
				return []any{"not a number"}, nil
			},
		},
	}
	r := NewReader(&stubBackend{}, zerolog.Nop())

	got := Read(context.Background(), r, c, "getCurrentWeek", time.Second, int64(-1), func(out []any) (int64, error) {
		v, err := Output(out, 0)
		if err != nil {
			return 0, err
		}
		return Int64(v)
	})
	assert.Equal(t, int64(-1), got)
}

func TestReader_Timeouts(t *testing.T) {
	r := NewReader(&stubBackend{}, zerolog.Nop())
	assert.Equal(t, 10*time.Second, r.CallTimeout())
	assert.Equal(t, 15*time.Second, r.ScanTimeout())

	r = NewReader(&stubBackend{}, zerolog.Nop(), WithTimeouts(time.Second, 0))
	assert.Equal(t, time.Second, r.CallTimeout())
	assert.Equal(t, 15*time.Second, r.ScanTimeout())
}

func TestDecoders(t *testing.T) {
	n, err := Uint(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.Int64())

	n, err = Uint(uint64(9))
	require.NoError(t, err)
	assert.Equal(t, int64(9), n.Int64())

	n, err = Uint("0x10")
	require.NoError(t, err)
	assert.Equal(t, int64(16), n.Int64())

	_, err = Uint(big.NewInt(-1))
	assert.Error(t, err)
	_, err = Uint(true)
	assert.Error(t, err)

	huge, _ := new(big.Int).SetString("100000000000000000000", 10)
	_, err = Int64(huge)
	assert.Error(t, err)

	l, err := List([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, l)

	_, err = Output([]any{1}, 1)
	assert.Error(t, err)

	tuple, err := Tuple(map[string]any{"amount": big.NewInt(1)})
	require.NoError(t, err)
	_, err = Field(tuple, "timestamp")
	assert.Error(t, err)

	assert.True(t, IsZeroHex(""))
	assert.True(t, IsZeroHex("0x0000000000000000000000000000000000000000000000000000000000000000"))
	assert.False(t, IsZeroHex("0x00ab"))
}
