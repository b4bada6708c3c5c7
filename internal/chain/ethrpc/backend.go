// Package ethrpc implements chain.Backend over an Ethereum JSON-RPC endpoint.
package ethrpc

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/example/savings-ledger/internal/chain"
)

var (
	//go:embed abi/savings.json
	savingsABI string
	//go:embed abi/circle.json
	circleABI string
	//go:embed abi/factory.json
	factoryABI string
)

// Client is the subset of ethclient.Client the backend reads through.
type Client interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend reads contracts at the latest block.
type Backend struct {
	client Client
	closer func()
	abis   map[chain.Interface]abi.ABI
	log    zerolog.Logger
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string, log zerolog.Logger) (*Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	b, err := New(client, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	b.closer = client.Close
	b.log.Debug().Str("rpc_url", rpcURL).Msg("Connected")
	return b, nil
}

// New creates a backend over an existing client.
func New(client Client, log zerolog.Logger) (*Backend, error) {
	abis := make(map[chain.Interface]abi.ABI, 3)
	for iface, def := range map[chain.Interface]string{
		chain.SavingsInterface: savingsABI,
		chain.CircleInterface:  circleABI,
		chain.FactoryInterface: factoryABI,
	} {
		parsed, err := abi.JSON(strings.NewReader(def))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s ABI: %w", iface, err)
		}
		abis[iface] = parsed
	}

	return &Backend{
		client: client,
		abis:   abis,
		log:    log.With().Str("component", "ethrpc").Logger(),
	}, nil
}

// Close releases the RPC connection.
func (b *Backend) Close() {
	if b.closer != nil {
		b.closer()
	}
}

func (b *Backend) HasCode(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("invalid address %q", address)
	}
	code, err := b.client.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

func (b *Backend) Bind(address string, iface chain.Interface) (chain.Contract, error) {
	parsed, ok := b.abis[iface]
	if !ok {
		return nil, fmt.Errorf("unknown contract interface %q", iface)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	return &contract{
		client:  b.client,
		address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

type contract struct {
	client  Client
	address common.Address
	abi     abi.ABI
}

func (c *contract) Address() string { return c.address.Hex() }

func (c *contract) HasMethod(name string) bool {
	_, ok := c.abi.Methods[name]
	return ok
}

func (c *contract) Call(ctx context.Context, method string, params ...any) ([]any, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s: %w", method, chain.ErrMethodNotFound)
	}

	args, err := convertParams(m.Inputs, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}

	result := make([]any, len(values))
	for i, v := range values {
		result[i] = normalize(v)
	}
	return result, nil
}

// convertParams turns hex strings into common.Address for address inputs.
func convertParams(inputs abi.Arguments, params []any) ([]any, error) {
	if len(params) != len(inputs) {
		return nil, fmt.Errorf("expected %d params, got %d", len(inputs), len(params))
	}

	args := make([]any, len(params))
	for i, p := range params {
		s, isString := p.(string)
		if inputs[i].Type.T == abi.AddressTy && isString {
			if !common.IsHexAddress(s) {
				return nil, fmt.Errorf("param %d: invalid address %q", i, s)
			}
			args[i] = common.HexToAddress(s)
			continue
		}
		args[i] = p
	}
	return args, nil
}

// normalize converts go-ethereum's unpacked values into chain's neutral forms.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case common.Address:
		return t.Hex()
	case *big.Int, string, bool:
		return t
	case []byte:
		return hexutil.Encode(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, rv.Len())
			for i := range raw {
				raw[i] = byte(rv.Index(i).Uint())
			}
			return hexutil.Encode(raw)
		}
		return normalizeList(rv)
	case reflect.Slice:
		return normalizeList(rv)
	case reflect.Struct:
		fields := make(map[string]any, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			fields[fieldName(f)] = normalize(rv.Field(i).Interface())
		}
		return fields
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func normalizeList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = normalize(rv.Index(i).Interface())
	}
	return out
}

// fieldName recovers the ABI component name go-ethereum stores in the json tag.
func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" {
		return tag
	}
	r := []rune(f.Name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
