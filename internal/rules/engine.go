// Package rules provides a CEL-Go based rule engine that produces a
// fraud probability for a transaction. It implements domain.RuleScorer
// and serves as the in-process rule/partner service for deployments
// without an external one.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/finshield/finshield/internal/collab"
	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/feature"
)

// Rule is one configurable CEL heuristic contributing to the fraud
// probability. Expressions must return bool, int, or double; numeric
// results are clamped to [0, 1].
type Rule struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Expression string  `json:"expression"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
}

type compiledRule struct {
	rule    *Rule
	program cel.Program
}

// VelocityGetter returns the transaction count for a user in a time window.
type VelocityGetter func(ctx context.Context, userID string, windowSecs int) (int64, error)

// VelocityWindowSecs is the lookback used for the velocity_count variable.
const VelocityWindowSecs = 3600

// Engine compiles rules once and evaluates them per transaction.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledRules  map[string]*compiledRule
	velocityGetter VelocityGetter
}

// NewEngine creates a rule engine. velocityGetter may be nil, in which
// case velocity_count evaluates as 0.
func NewEngine(velocityGetter VelocityGetter) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("device_info", cel.StringType),
		cel.Variable("ip_address", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledRules:  make(map[string]*compiledRule),
		velocityGetter: velocityGetter,
	}, nil
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(r *Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(r)
	if err != nil {
		return err
	}

	e.compiledRules[r.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []*Rule) error {
	for _, r := range rules {
		if r.Enabled {
			if err := e.LoadRule(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
func (e *Engine) ReloadRules(rules []*Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*compiledRule)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		compiled, err := e.compileRule(r)
		if err != nil {
			return err
		}
		newRules[r.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Score evaluates every loaded rule against the transaction and
// returns the weighted fraud probability in [0, 1]. With no rules
// loaded it falls back to the deterministic hash mock, so the signal
// stays available in a bare deployment.
func (e *Engine) Score(ctx context.Context, tx *domain.Transaction) (float64, error) {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return collab.RuleFallbackScore(tx), nil
	}

	activation := e.activation(ctx, tx)

	var weighted, totalWeight float64
	for _, r := range rules {
		weight := r.rule.Weight
		if weight <= 0 {
			weight = 1.0
		}

		out, _, err := r.program.Eval(activation)
		if err != nil {
			// A broken rule contributes nothing rather than
			// poisoning the aggregate.
			continue
		}

		weighted += clamp01(toScore(out)) * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return collab.RuleFallbackScore(tx), nil
	}
	return clamp01(weighted / totalWeight), nil
}

func (e *Engine) activation(ctx context.Context, tx *domain.Transaction) map[string]any {
	var velocityCount int64
	if e.velocityGetter != nil {
		if count, err := e.velocityGetter(ctx, tx.UserID, VelocityWindowSecs); err == nil {
			velocityCount = count
		}
	}

	vec := feature.Extract(tx)

	return map[string]any{
		"tx": map[string]any{
			"id":          tx.ID,
			"amount":      tx.Amount,
			"merchant":    tx.Merchant,
			"location":    tx.Location,
			"user_id":     tx.UserID,
			"device_info": tx.DeviceInfo,
			"ip_address":  tx.IPAddress,
		},
		"amount":         tx.Amount,
		"merchant":       tx.Merchant,
		"location":       tx.Location,
		"user_id":        tx.UserID,
		"device_info":    tx.DeviceInfo,
		"ip_address":     tx.IPAddress,
		"hour":           int64(vec[4]),
		"velocity_count": velocityCount,
	}
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*Rule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*compiledRule)
	return nil
}

func (e *Engine) compileRule(r *Rule) (*compiledRule, error) {
	ast, issues := e.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", r.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", r.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", r.ID, err)
	}

	return &compiledRule{
		rule:    r,
		program: program,
	}, nil
}
