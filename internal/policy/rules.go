package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

// ContentTypeWildcard makes a rule apply to every content type.
const ContentTypeWildcard = "*"

// SafetyChecks gates what the orchestrator verifies before deleting a node
// the rule matched.
type SafetyChecks struct {
	CheckLinks       bool `json:"checkLinks"`
	SkipIfReferenced bool `json:"skipIfReferenced"`
}

// DeletionRule describes one deletion policy: which content types and
// environments it applies to, the condition tree a node must match, and the
// safety checks that guard execution.
type DeletionRule struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Enabled      bool         `json:"enabled"`
	ContentTypes []string     `json:"contentTypes"`
	Environments []string     `json:"environments,omitempty"`
	Conditions   *Condition   `json:"conditions"`
	Safety       SafetyChecks `json:"safetyChecks"`
}

// AppliesTo reports whether the rule is in scope for a node of the given
// content type in the given environment. A nil environment list means the
// rule applies everywhere; the content-type list supports the wildcard.
func (r *DeletionRule) AppliesTo(contentType, environment string) bool {
	if r == nil {
		return false
	}

	typeOK := false
	for _, ct := range r.ContentTypes {
		if ct == ContentTypeWildcard || ct == contentType {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}

	return r.appliesToEnvironment(environment)
}

func (r *DeletionRule) appliesToEnvironment(environment string) bool {
	if len(r.Environments) == 0 {
		return true
	}
	for _, env := range r.Environments {
		if strings.EqualFold(env, environment) {
			return true
		}
	}
	return false
}

// Label returns the rule's display name, falling back to its id.
func (r *DeletionRule) Label() string {
	if r == nil {
		return ""
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return r.ID
}

// Match pairs the first rule a node satisfied with the reasons it matched.
type Match struct {
	Rule    *DeletionRule
	Reasons []string
}

// RuleSet evaluates an ordered list of deletion rules. Rule order is
// precedence: the first enabled, in-scope rule whose conditions match wins.
type RuleSet struct {
	rules  []*DeletionRule
	eval   *evaluator
	logger interfaces.Logger
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithLogger attaches a logger for evaluation diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *RuleSet) {
		if logger != nil {
			s.logger = logger
			s.eval.logger = logger
		}
	}
}

// WithNow overrides the clock used by temporal operators.
func WithNow(now func() time.Time) Option {
	return func(s *RuleSet) {
		if now != nil {
			s.eval.now = now
		}
	}
}

// WithLocales sets the locale precedence used when a field holds values in
// several locales. Locales not listed fall back to sorted order.
func WithLocales(locales ...string) Option {
	return func(s *RuleSet) {
		s.eval.locales = locales
	}
}

// WithTreatIncompleteLinksAsEmpty controls whether a link lacking a target
// id counts as empty for hasNoData. Defaults to true.
func WithTreatIncompleteLinksAsEmpty(treat bool) Option {
	return func(s *RuleSet) {
		s.eval.treatIncompleteLinks = treat
	}
}

// NewRuleSet builds a rule set preserving the given rule order.
func NewRuleSet(rules []*DeletionRule, opts ...Option) *RuleSet {
	s := &RuleSet{
		rules:  rules,
		eval:   newEvaluator(),
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the rules in precedence order.
func (s *RuleSet) Rules() []*DeletionRule {
	return s.rules
}

// Enabled returns only the enabled rules, preserving order.
func (s *RuleSet) Enabled() []*DeletionRule {
	out := make([]*DeletionRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule != nil && rule.Enabled {
			out = append(out, rule)
		}
	}
	return out
}

// ContentTypes returns the distinct content types the enabled rules target
// in the given environment, preserving first-mention order. wildcard reports
// that at least one in-scope rule targets every content type; the type list
// is nil in that case and discovery must fetch without a type filter.
func (s *RuleSet) ContentTypes(environment string) (types []string, wildcard bool) {
	seen := make(map[string]struct{})
	for _, rule := range s.rules {
		if rule == nil || !rule.Enabled || !rule.appliesToEnvironment(environment) {
			continue
		}
		for _, ct := range rule.ContentTypes {
			if ct == ContentTypeWildcard {
				return nil, true
			}
			if _, ok := seen[ct]; ok {
				continue
			}
			seen[ct] = struct{}{}
			types = append(types, ct)
		}
	}
	return types, false
}

// Match evaluates the node against each enabled rule in order and returns
// the first match, or nil when no rule applies. A rule out of scope for the
// node's content type or environment is skipped entirely.
func (s *RuleSet) Match(node *graph.Node, environment string) *Match {
	if node == nil {
		return nil
	}
	for _, rule := range s.rules {
		if rule == nil || !rule.Enabled {
			continue
		}
		if !rule.AppliesTo(node.ContentType, environment) {
			continue
		}
		result, err := s.evaluateRule(node, rule)
		if err != nil {
			s.logger.Error("rule evaluation failed, skipping rule for node",
				"rule", rule.ID,
				"node_id", node.ID,
				"error", err,
			)
			continue
		}
		if result.Matched {
			return &Match{Rule: rule, Reasons: result.Reasons}
		}
	}
	return nil
}

// EvaluateConditions runs a condition tree against a node using the set's
// clock and locale settings.
func (s *RuleSet) EvaluateConditions(node *graph.Node, cond Condition) Result {
	return s.eval.evaluate(node, cond)
}

// evaluateRule contains a single rule evaluation so a defect in one rule or
// one node cannot take down the whole run.
func (s *RuleSet) evaluateRule(node *graph.Node, rule *DeletionRule) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{}
			err = fmt.Errorf("policy: rule %q panic: %v", rule.ID, rec)
		}
	}()
	if rule.Conditions == nil {
		return Result{}, nil
	}
	result = s.eval.evaluate(node, *rule.Conditions)
	return result, nil
}
