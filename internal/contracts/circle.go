package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/example/savings-ledger/internal/chain"
)

// Method names exposed by group circle contracts and their factory.
const (
	MethodContributionProgress = "getContributionProgress"
	MethodCircleDetails        = "getCircleDetails"
	MethodCurrentWeek          = "getCurrentWeek"
	MethodMembers              = "getMembers"
	MethodUserCircles          = "getUserCircles"
)

// Progress is an account's contribution progress in one circle.
type Progress struct {
	ContributedWeeks  int64
	TotalContribution *big.Int
}

// Details are the static parameters of a circle.
type Details struct {
	Name               string
	WeeklyContribution *big.Int
	MaxMembers         int64
}

// Circle is one group savings circle.
type Circle struct {
	contract chain.Contract
	reader   *chain.Reader
}

// OpenCircle checks for bytecode at address and binds the circle ABI.
func OpenCircle(ctx context.Context, reader *chain.Reader, address string) (*Circle, error) {
	c, err := reader.Open(ctx, address, chain.CircleInterface)
	if err != nil {
		return nil, err
	}
	return &Circle{contract: c, reader: reader}, nil
}

func (c *Circle) Address() string { return c.contract.Address() }

func (c *Circle) call(ctx context.Context, method string, params ...any) ([]any, error) {
	return c.reader.Try(ctx, c.contract, method, c.reader.CallTimeout(), params...)
}

// Progress reads (contributedWeeks, totalContribution) for account.
func (c *Circle) Progress(ctx context.Context, account string) (Progress, error) {
	out, err := c.call(ctx, MethodContributionProgress, account)
	if err != nil {
		return Progress{}, err
	}
	if len(out) < 2 {
		return Progress{}, fmt.Errorf("%s: expected 2 outputs, got %d", MethodContributionProgress, len(out))
	}

	weeks, err := chain.Int64(out[0])
	if err != nil {
		return Progress{}, fmt.Errorf("%s weeks: %w", MethodContributionProgress, err)
	}
	total, err := chain.Uint(out[1])
	if err != nil {
		return Progress{}, fmt.Errorf("%s total: %w", MethodContributionProgress, err)
	}
	return Progress{ContributedWeeks: weeks, TotalContribution: total}, nil
}

// Details reads the circle's static parameters.
func (c *Circle) Details(ctx context.Context) (Details, error) {
	out, err := c.call(ctx, MethodCircleDetails)
	if err != nil {
		return Details{}, err
	}
	v, err := chain.Output(out, 0)
	if err != nil {
		return Details{}, fmt.Errorf("%s: %w", MethodCircleDetails, err)
	}
	tuple, err := chain.Tuple(v)
	if err != nil {
		return Details{}, fmt.Errorf("%s: %w", MethodCircleDetails, err)
	}

	raw, err := chain.Field(tuple, "weeklyContribution")
	if err != nil {
		return Details{}, fmt.Errorf("%s: %w", MethodCircleDetails, err)
	}
	weekly, err := chain.Uint(raw)
	if err != nil {
		return Details{}, fmt.Errorf("%s weeklyContribution: %w", MethodCircleDetails, err)
	}

	d := Details{WeeklyContribution: weekly}
	if name, ok := tuple["name"]; ok {
		d.Name, _ = chain.Text(name)
	}
	if members, ok := tuple["maxMembers"]; ok {
		d.MaxMembers, _ = chain.Int64(members)
	}
	return d, nil
}

// CurrentWeek reads the circle's zero-based current cycle.
func (c *Circle) CurrentWeek(ctx context.Context) (int64, error) {
	out, err := c.call(ctx, MethodCurrentWeek)
	if err != nil {
		return 0, err
	}
	v, err := chain.Output(out, 0)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", MethodCurrentWeek, err)
	}
	return chain.Int64(v)
}

// Members reads the circle's payout-ordered member list.
func (c *Circle) Members(ctx context.Context) ([]string, error) {
	out, err := c.call(ctx, MethodMembers)
	if err != nil {
		return nil, err
	}
	v, err := chain.Output(out, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MethodMembers, err)
	}
	items, err := chain.List(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MethodMembers, err)
	}

	members := make([]string, 0, len(items))
	for i, item := range items {
		s, err := chain.Text(item)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", MethodMembers, i, err)
		}
		members = append(members, s)
	}
	return members, nil
}
