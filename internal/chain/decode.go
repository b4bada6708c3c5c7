package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// Output returns the i-th output of a call.
func Output(out []any, i int) (any, error) {
	if i < 0 || i >= len(out) {
		return nil, fmt.Errorf("output %d missing: call returned %d values", i, len(out))
	}
	return out[i], nil
}

// Uint decodes an unsigned integer value.
func Uint(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative integer %s", n)
		}
		return new(big.Int).Set(n), nil
	case big.Int:
		return Uint(&n)
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case int:
		return Uint(big.NewInt(int64(n)))
	case int64:
		return Uint(big.NewInt(n))
	case string:
		i, ok := new(big.Int).SetString(n, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return Uint(i)
	}
	return nil, fmt.Errorf("unexpected integer type %T", v)
}

// Int64 decodes an unsigned integer that must fit in an int64.
func Int64(v any) (int64, error) {
	n, err := Uint(v)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("integer %s overflows int64", n)
	}
	return n.Int64(), nil
}

// Text decodes a string value.
func Text(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected string type %T", v)
	}
	return s, nil
}

// List decodes an array value.
func List(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected array type %T", v)
}

// Tuple decodes a tuple value.
func Tuple(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected tuple type %T", v)
	}
	return m, nil
}

// Field returns a tuple component by name.
func Field(tuple map[string]any, name string) (any, error) {
	v, ok := tuple[name]
	if !ok {
		return nil, fmt.Errorf("tuple has no field %q", name)
	}
	return v, nil
}

// IsZeroHex reports whether s is empty or a hex string of only zeros.
func IsZeroHex(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.Trim(s, "0") == ""
}
