package policy

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-sweep/internal/graph"
	"github.com/goliatone/go-sweep/internal/logging"
	"github.com/goliatone/go-sweep/pkg/interfaces"
)

// Result is the outcome of evaluating a condition tree against one node.
// Reasons explain the match for the run report and audit log.
type Result struct {
	Matched bool
	Reasons []string
}

type evaluator struct {
	now                  func() time.Time
	locales              []string
	treatIncompleteLinks bool
	logger               interfaces.Logger
}

func newEvaluator() *evaluator {
	return &evaluator{
		now:                  time.Now,
		treatIncompleteLinks: true,
		logger:               logging.NoOp(),
	}
}

func (e *evaluator) evaluate(node *graph.Node, cond Condition) Result {
	if cond.IsGroup() {
		return e.evaluateGroup(node, cond)
	}
	return e.evaluateLeaf(node, cond)
}

func (e *evaluator) evaluateGroup(node *graph.Node, cond Condition) Result {
	if len(cond.Rules) == 0 {
		// A combinator with no children is malformed; it never matches so a
		// broken document cannot authorize deletions.
		e.logger.Warn("condition group has no rules", "operator", cond.Operator)
		return Result{}
	}

	switch cond.combinator() {
	case OpAnd:
		reasons := []string{}
		for _, child := range cond.Rules {
			result := e.evaluate(node, child)
			if !result.Matched {
				return Result{}
			}
			reasons = append(reasons, result.Reasons...)
		}
		return Result{Matched: true, Reasons: reasons}
	case OpOr:
		for _, child := range cond.Rules {
			if result := e.evaluate(node, child); result.Matched {
				return result
			}
		}
		return Result{}
	default:
		return Result{}
	}
}

func (e *evaluator) evaluateLeaf(node *graph.Node, cond Condition) Result {
	matched := false

	switch cond.Operator {
	case OpIsEmpty:
		value, ok := e.resolve(node, cond.Field)
		matched = !ok || value.IsEmpty()
	case OpIsNotEmpty:
		value, ok := e.resolve(node, cond.Field)
		matched = ok && !value.IsEmpty()
	case OpEquals:
		value, ok := e.resolve(node, cond.Field)
		matched = ok && value.Text() == cond.ValueText()
	case OpNotEquals:
		value, ok := e.resolve(node, cond.Field)
		matched = !ok || value.Text() != cond.ValueText()
	case OpContains:
		value, ok := e.resolve(node, cond.Field)
		matched = ok && containsValue(value, cond.ValueText())
	case OpStartsWith:
		value, ok := e.resolve(node, cond.Field)
		matched = ok && strings.HasPrefix(value.Text(), cond.ValueText())
	case OpEndsWith:
		value, ok := e.resolve(node, cond.Field)
		matched = ok && strings.HasSuffix(value.Text(), cond.ValueText())
	case OpBefore, OpAfter:
		matched = e.evaluateTemporal(node, cond)
	case OpOlderThan, OpNewerThan:
		matched = e.evaluateRelative(node, cond)
	case OpGreaterThan, OpLessThan:
		matched = e.evaluateNumeric(node, cond)
	case OpHasNoData:
		matched = nodeHasNoData(node, e.treatIncompleteLinks)
	default:
		e.logger.Warn("unknown rule operator, treating as no match",
			"operator", cond.Operator,
			"field", cond.Field,
		)
		return Result{}
	}

	if !matched {
		return Result{}
	}
	return Result{Matched: true, Reasons: []string{cond.Reason()}}
}

func (e *evaluator) evaluateTemporal(node *graph.Node, cond Condition) bool {
	value, ok := e.resolve(node, cond.Field)
	if !ok {
		return false
	}
	fieldTime, ok := value.AsTime()
	if !ok {
		e.logger.Warn("temporal operator on non-time value, treating as no match",
			"operator", cond.Operator,
			"field", cond.Field,
		)
		return false
	}

	want := cond.ValueText()
	var ruleTime time.Time
	if strings.EqualFold(want, "now") {
		ruleTime = e.now()
	} else {
		parsed, ok := graph.ParseTime(want)
		if !ok {
			e.logger.Warn("temporal operator with unparseable value, treating as no match",
				"operator", cond.Operator,
				"value", want,
			)
			return false
		}
		ruleTime = parsed
	}

	if cond.Operator == OpBefore {
		return fieldTime.Before(ruleTime)
	}
	return fieldTime.After(ruleTime)
}

func (e *evaluator) evaluateRelative(node *graph.Node, cond Condition) bool {
	window, ok := ParseRelativeDuration(cond.ValueText())
	if !ok {
		e.logger.Warn("relative operator with unparseable duration, treating as no match",
			"operator", cond.Operator,
			"value", cond.ValueText(),
		)
		return false
	}
	if node.CreatedAt.IsZero() {
		return false
	}

	age := e.now().Sub(node.CreatedAt)
	if cond.Operator == OpOlderThan {
		return age > window
	}
	return age < window
}

func (e *evaluator) evaluateNumeric(node *graph.Node, cond Condition) bool {
	value, ok := e.resolve(node, cond.Field)
	if !ok {
		return false
	}

	fieldNum, ok := value.AsNumber()
	if !ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value.Text()), 64)
		if err != nil {
			return false
		}
		fieldNum = parsed
	}

	want, ok := cond.ValueNumber()
	if !ok {
		return false
	}

	if cond.Operator == OpGreaterThan {
		return fieldNum > want
	}
	return fieldNum < want
}

// resolve extracts the value a leaf compares: sys metadata by name, or the
// first available locale of a content field.
func (e *evaluator) resolve(node *graph.Node, field string) (graph.Value, bool) {
	name := strings.TrimSpace(field)
	if name == "" || node == nil {
		return graph.Null(), false
	}

	if strings.HasPrefix(name, "sys.") {
		return sysValue(node, strings.TrimPrefix(name, "sys."))
	}

	name = strings.TrimPrefix(name, "fields.")
	locales, ok := node.FieldLocales(name)
	if !ok || len(locales) == 0 {
		return graph.Null(), false
	}

	for _, locale := range e.locales {
		if value, ok := locales[locale]; ok {
			return value, true
		}
	}
	for _, locale := range locales.Locales() {
		return locales[locale], true
	}
	return graph.Null(), false
}

func sysValue(node *graph.Node, key string) (graph.Value, bool) {
	switch key {
	case "id":
		return graph.String(node.ID), true
	case "type":
		return graph.String(string(node.Kind)), true
	case "contentType":
		return graph.String(node.ContentType), true
	case "version":
		return graph.Number(float64(node.Version)), true
	case "publishedVersion":
		return graph.Number(float64(node.PublishedVersion)), true
	case "createdAt":
		return timestampValue(node.CreatedAt), true
	case "updatedAt":
		return timestampValue(node.UpdatedAt), true
	case "publishedAt":
		if node.PublishedAt == nil {
			return graph.Null(), true
		}
		return timestampValue(*node.PublishedAt), true
	case "archivedAt":
		if node.ArchivedAt == nil {
			return graph.Null(), true
		}
		return timestampValue(*node.ArchivedAt), true
	default:
		return graph.Null(), false
	}
}

func timestampValue(ts time.Time) graph.Value {
	if ts.IsZero() {
		return graph.Null()
	}
	return graph.String(ts.UTC().Format(time.RFC3339))
}

// containsValue applies substring matching to strings and element matching
// to arrays, mirroring how rule authors expect `contains` to behave on both.
func containsValue(value graph.Value, want string) bool {
	if items := value.Items(); items != nil {
		for _, item := range items {
			if item.Text() == want {
				return true
			}
		}
		return false
	}
	return strings.Contains(value.Text(), want)
}

func nodeHasNoData(node *graph.Node, treatIncompleteLinks bool) bool {
	if node == nil {
		return true
	}
	for _, locales := range node.Fields {
		for _, value := range locales {
			if value.HasData(treatIncompleteLinks) {
				return false
			}
		}
	}
	return true
}
