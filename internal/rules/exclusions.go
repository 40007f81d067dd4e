// Package rules provides the CEL-Go based coverage exclusion engine.
// Exclusions are boolean expressions over a journey's legs; a journey
// matching any enabled exclusion is not insurable.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// ExclusionRule is a single configurable coverage exclusion.
type ExclusionRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

type compiledExclusion struct {
	rule    *ExclusionRule
	program cel.Program
}

// Engine compiles and evaluates exclusion rules against journeys.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledExclusion
}

// NewEngine creates an exclusion engine with the journey variables in
// scope: legs (list of leg maps), leg_count, departure_stop,
// arrival_stop, and trains (list of train designations).
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("legs", cel.ListType(cel.MapType(cel.StringType, cel.StringType))),
		cel.Variable("leg_count", cel.IntType),
		cel.Variable("departure_stop", cel.StringType),
		cel.Variable("arrival_stop", cel.StringType),
		cel.Variable("trains", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledExclusion),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *ExclusionRule) error {
	if rule == nil {
		return fmt.Errorf("exclusion rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *ExclusionRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}
	e.compiled[rule.ID] = compiled
	return nil
}

// LoadRules loads every enabled rule from the slice.
func (e *Engine) LoadRules(rules []*ExclusionRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadFile loads exclusion rules from a JSON file holding an array of
// rules. An empty path is a no-op; the engine then excludes nothing.
func (e *Engine) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read exclusion rules: %w", err)
	}

	var rules []*ExclusionRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("parse exclusion rules: %w", err)
	}
	return e.LoadRules(rules)
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

func (e *Engine) compileRule(rule *ExclusionRule) (*compiledExclusion, error) {
	if rule.ID == "" {
		return nil, fmt.Errorf("exclusion rule has no id")
	}
	if rule.Expression == "" {
		return nil, fmt.Errorf("exclusion rule %s has no expression", rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile exclusion rule %s: %w", rule.ID, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("exclusion rule %s must evaluate to bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program exclusion rule %s: %w", rule.ID, err)
	}
	return &compiledExclusion{rule: rule, program: program}, nil
}

// Matches evaluates all loaded rules against the journey. It returns
// the ID of the first matching rule, or ok=false when no rule matches.
// Evaluation errors in an individual rule never exclude a journey; the
// rule simply does not match.
func (e *Engine) Matches(j *domain.Journey) (string, bool) {
	e.mu.RLock()
	rules := make([]*compiledExclusion, 0, len(e.compiled))
	for _, rule := range e.compiled {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 || j.Empty() {
		return "", false
	}

	activation := journeyActivation(j)
	for _, rule := range rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			return rule.rule.ID, true
		}
	}
	return "", false
}

func journeyActivation(j *domain.Journey) map[string]any {
	legs := make([]map[string]string, len(j.Legs))
	trains := make([]string, len(j.Legs))
	for i, leg := range j.Legs {
		legs[i] = map[string]string{
			"train":        leg.Train,
			"start_stop":   leg.StartStop,
			"start_time":   leg.StartTime,
			"start_date":   leg.StartDate,
			"arrival_stop": leg.ArrivalStop,
			"arrival_time": leg.ArrivalTime,
			"arrival_date": leg.ArrivalDate,
		}
		trains[i] = leg.Train
	}

	first := j.Legs[0]
	last := j.Legs[len(j.Legs)-1]

	return map[string]any{
		"legs":           legs,
		"leg_count":      len(j.Legs),
		"departure_stop": first.StartStop,
		"arrival_stop":   last.ArrivalStop,
		"trains":         trains,
	}
}
