package reconcile

import (
	"fmt"
	"strings"

	"github.com/David-Botos/crdc-reconcile/pkg/config"
	"github.com/David-Botos/crdc-reconcile/pkg/identifier"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
)

// JoinMode decides whether mapped counties without demographic rows are kept
type JoinMode int

const (
	// JoinLeft keeps every mapped county, with zero sums and a null percentage
	JoinLeft JoinMode = iota
	// JoinInner drops counties that no demographic row joins to
	JoinInner
)

func (m JoinMode) String() string {
	if m == JoinInner {
		return "inner"
	}
	return "left"
}

// ParseJoinMode parses "left" or "inner"
func ParseJoinMode(s string) (JoinMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return JoinLeft, nil
	case "inner":
		return JoinInner, nil
	default:
		return JoinLeft, fmt.Errorf("unknown join mode %q (want left or inner)", s)
	}
}

// SentinelPolicy decides how missing counts take part in sums
type SentinelPolicy int

const (
	// SentinelExclude adds nothing for a missing count
	SentinelExclude SentinelPolicy = iota
	// SentinelPassThrough adds the raw reserve code, as a plain SUM over the source would
	SentinelPassThrough
)

func (p SentinelPolicy) String() string {
	if p == SentinelPassThrough {
		return "pass_through"
	}
	return "exclude"
}

// ParseSentinelPolicy parses "exclude" or "pass_through"
func ParseSentinelPolicy(s string) (SentinelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclude":
		return SentinelExclude, nil
	case "pass_through", "pass-through", "passthrough":
		return SentinelPassThrough, nil
	default:
		return SentinelExclude, fmt.Errorf("unknown sentinel policy %q (want exclude or pass_through)", s)
	}
}

// NullsOrder places rows with a null percentage in the descending sort
type NullsOrder int

const (
	// NullsFirst matches PostgreSQL's default for DESC
	NullsFirst NullsOrder = iota
	NullsLast
)

func (n NullsOrder) String() string {
	if n == NullsLast {
		return "last"
	}
	return "first"
}

// ParseNullsOrder parses "first" or "last"
func ParseNullsOrder(s string) (NullsOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return NullsFirst, nil
	case "last":
		return NullsLast, nil
	default:
		return NullsFirst, fmt.Errorf("unknown nulls order %q (want first or last)", s)
	}
}

// Options control aggregation
type Options struct {
	JoinMode       JoinMode
	SentinelPolicy SentinelPolicy
	NullsOrder     NullsOrder
	KeyScope       identifier.KeyScope
}

// DefaultOptions returns left join, sentinel exclusion, nulls first, district scope
func DefaultOptions() Options {
	return Options{}
}

// ParseOptions converts textual configuration into Options
func ParseOptions(cfg config.ReconcileConfig) (Options, error) {
	var (
		opts Options
		err  error
	)
	if opts.JoinMode, err = ParseJoinMode(cfg.JoinMode); err != nil {
		return opts, err
	}
	if opts.SentinelPolicy, err = ParseSentinelPolicy(cfg.SentinelPolicy); err != nil {
		return opts, err
	}
	if opts.NullsOrder, err = ParseNullsOrder(cfg.NullsOrder); err != nil {
		return opts, err
	}
	scope, ok := identifier.ParseKeyScope(cfg.KeyScope)
	if !ok {
		return opts, fmt.Errorf("unknown key scope %q (want district or state_district)", cfg.KeyScope)
	}
	opts.KeyScope = scope
	return opts, nil
}

// Pushdown returns the equivalent database-side options
func (o Options) Pushdown() source.PushdownOptions {
	return source.PushdownOptions{
		Inner:       o.JoinMode == JoinInner,
		PassThrough: o.SentinelPolicy == SentinelPassThrough,
		NullsLast:   o.NullsOrder == NullsLast,
		StateScope:  o.KeyScope == identifier.ScopeStateDistrict,
	}
}
