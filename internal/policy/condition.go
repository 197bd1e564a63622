package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator names the comparison a condition leaf applies, or the boolean
// combinator of a group node.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"

	OpIsEmpty    Operator = "isEmpty"
	OpIsNotEmpty Operator = "isNotEmpty"

	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "notEquals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"

	OpBefore    Operator = "before"
	OpAfter     Operator = "after"
	OpOlderThan Operator = "olderThan"
	OpNewerThan Operator = "newerThan"

	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"

	OpHasNoData Operator = "hasNoData"
)

// Condition is one node of a rule tree. Group nodes carry AND/OR and child
// Rules; leaves carry a field, an operator, and usually a comparison value.
type Condition struct {
	Field       string      `json:"field,omitempty"`
	Operator    Operator    `json:"operator"`
	Value       any         `json:"value,omitempty"`
	Description string      `json:"description,omitempty"`
	Rules       []Condition `json:"rules,omitempty"`
}

// IsGroup reports whether the condition combines child rules.
func (c Condition) IsGroup() bool {
	op := c.combinator()
	return op == OpAnd || op == OpOr
}

func (c Condition) combinator() Operator {
	switch {
	case strings.EqualFold(string(c.Operator), string(OpAnd)):
		return OpAnd
	case strings.EqualFold(string(c.Operator), string(OpOr)):
		return OpOr
	default:
		return c.Operator
	}
}

// ValueText renders the comparison value for string operators. Rule
// documents may carry numbers or booleans where strings are compared.
func (c Condition) ValueText() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// ValueNumber parses the comparison value as a float.
func (c Condition) ValueNumber() (float64, bool) {
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Reason renders the human-readable explanation recorded when the leaf
// matches. The document's description wins when present.
func (c Condition) Reason() string {
	if desc := strings.TrimSpace(c.Description); desc != "" {
		return desc
	}
	if c.Field == "" {
		return string(c.Operator)
	}
	if c.Value == nil {
		return fmt.Sprintf("%s %s", c.Field, c.Operator)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Operator, c.ValueText())
}

// ParseRelativeDuration parses the `<integer><unit>` form used by
// olderThan/newerThan, with unit d (days), h (hours), or m (minutes).
func ParseRelativeDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, false
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'm':
		return time.Duration(n) * time.Minute, true
	default:
		return 0, false
	}
}
