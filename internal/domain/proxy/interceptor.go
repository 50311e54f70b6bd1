// Package proxy contains the interception rules for the control protocol.
package proxy

import (
	"context"
	"fmt"

	"github.com/rabits/control-interceptor/pkg/rpc"
)

// MessageInterceptor inspects and optionally rewrites request envelopes
// before they are forwarded upstream.
type MessageInterceptor interface {
	// Intercept returns the envelope to forward, possibly modified in place.
	Intercept(ctx context.Context, env *rpc.Envelope) (*rpc.Envelope, error)
}

// RuleChain applies a fixed sequence of rules to every envelope.
type RuleChain struct {
	rules   []Rule
	onApply func(rule string)
}

// ChainOption configures a RuleChain.
type ChainOption func(*RuleChain)

// WithApplyHook registers a callback invoked with the name of every rule
// that rewrote an envelope.
func WithApplyHook(fn func(rule string)) ChainOption {
	return func(c *RuleChain) {
		c.onApply = fn
	}
}

// NewRuleChain creates a chain running rules in the given order.
func NewRuleChain(rules []Rule, opts ...ChainOption) *RuleChain {
	c := &RuleChain{rules: rules}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultRuleChain creates a chain with the dangerous-method stub followed
// by the content-source rewrite.
func NewDefaultRuleChain(opts ...ChainOption) *RuleChain {
	return NewRuleChain([]Rule{DangerousMethodStub{}, ContentSourceRewrite{}}, opts...)
}

// Intercept runs each rule whose predicate holds. Rules see the output of
// the rules before them.
func (c *RuleChain) Intercept(ctx context.Context, env *rpc.Envelope) (*rpc.Envelope, error) {
	for _, rule := range c.rules {
		if !rule.Matches(env) {
			continue
		}
		if err := rule.Apply(env); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		if c.onApply != nil {
			c.onApply(rule.Name())
		}
	}
	return env, nil
}

// Compile-time check that RuleChain implements MessageInterceptor.
var _ MessageInterceptor = (*RuleChain)(nil)
