package contracts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/savings-ledger/internal/chain"
)

// Factory enumerates the circles an account belongs to.
type Factory struct {
	contract chain.Contract
	reader   *chain.Reader
	log      zerolog.Logger
}

// OpenFactory checks for bytecode at address and binds the factory ABI.
func OpenFactory(ctx context.Context, reader *chain.Reader, address string, log zerolog.Logger) (*Factory, error) {
	c, err := reader.Open(ctx, address, chain.FactoryInterface)
	if err != nil {
		return nil, err
	}
	return &Factory{
		contract: c,
		reader:   reader,
		log:      log.With().Str("component", "circle_factory").Logger(),
	}, nil
}

// Circles lists the circle addresses account belongs to. Malformed entries are
// logged and dropped; a failed discovery read yields no circles.
func (f *Factory) Circles(ctx context.Context, account string) []string {
	return chain.Read(ctx, f.reader, f.contract, MethodUserCircles, f.reader.ScanTimeout(), []string{},
		func(out []any) ([]string, error) {
			return f.decodeCircles(out, account)
		}, account)
}

func (f *Factory) decodeCircles(out []any, account string) ([]string, error) {
	v, err := chain.Output(out, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MethodUserCircles, err)
	}
	items, err := chain.List(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MethodUserCircles, err)
	}

	circles := make([]string, 0, len(items))
	for i, item := range items {
		s, err := chain.Text(item)
		if err != nil || !chain.IsAddress(s) {
			f.log.Warn().
				Int("index", i).
				Interface("entry", item).
				Str("account", account).
				Msg("Dropping malformed circle address")
			continue
		}
		circles = append(circles, s)
	}
	return circles, nil
}
