package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-slug"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrDocumentEmpty   = errors.New("policy: rules document is empty")
	ErrDocumentInvalid = errors.New("policy: rules document failed validation")
)

// rulesSchema is the JSON Schema every rules document must satisfy before
// rules are accepted. Operators are deliberately not an enum: an unknown
// operator degrades to "never matches" at evaluation time instead of
// rejecting the whole document.
const rulesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["rules"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string"},
    "rules": {
      "type": "array",
      "items": {"$ref": "#/$defs/rule"}
    }
  },
  "$defs": {
    "rule": {
      "type": "object",
      "required": ["name", "contentTypes", "conditions"],
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "enabled": {"type": "boolean"},
        "contentTypes": {
          "type": "array",
          "items": {"type": "string", "minLength": 1},
          "minItems": 1
        },
        "environments": {
          "type": "array",
          "items": {"type": "string", "minLength": 1}
        },
        "conditions": {"$ref": "#/$defs/condition"},
        "safetyChecks": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "checkLinks": {"type": "boolean"},
            "skipIfReferenced": {"type": "boolean"}
          }
        }
      }
    },
    "condition": {
      "type": "object",
      "required": ["operator"],
      "additionalProperties": false,
      "properties": {
        "field": {"type": "string"},
        "operator": {"type": "string", "minLength": 1},
        "value": {},
        "description": {"type": "string"},
        "rules": {
          "type": "array",
          "items": {"$ref": "#/$defs/condition"}
        }
      }
    }
  }
}`

// ValidationIssue captures a single schema violation.
type ValidationIssue struct {
	Location string
	Message  string
}

// DocumentError reports why a rules document was rejected, with one issue
// per schema violation.
type DocumentError struct {
	Issues []ValidationIssue
	Cause  error
}

func (e *DocumentError) Error() string {
	if len(e.Issues) == 0 {
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return ErrDocumentInvalid.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		location := strings.TrimSpace(issue.Location)
		if location == "" {
			location = "#"
		} else if !strings.HasPrefix(location, "#") {
			location = "#" + location
		}
		if issue.Message == "" {
			parts = append(parts, location)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", location, issue.Message))
	}
	return strings.Join(parts, "; ")
}

func (e *DocumentError) Unwrap() error {
	return ErrDocumentInvalid
}

// Document is the decoded shape of a rules file.
type Document struct {
	Version string         `json:"version,omitempty"`
	Rules   []documentRule `json:"rules"`
}

// documentRule mirrors DeletionRule but keeps Enabled optional so an
// omitted flag defaults to enabled.
type documentRule struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Enabled      *bool        `json:"enabled,omitempty"`
	ContentTypes []string     `json:"contentTypes"`
	Environments []string     `json:"environments,omitempty"`
	Conditions   *Condition   `json:"conditions"`
	Safety       SafetyChecks `json:"safetyChecks"`
}

// LoadRules reads, validates, and normalizes a rules document.
func LoadRules(r io.Reader) ([]*DeletionRule, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("policy: read rules document: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules validates raw JSON against the rules schema and returns the
// normalized rule list in document order.
func ParseRules(raw []byte) ([]*DeletionRule, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrDocumentEmpty
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &DocumentError{Cause: fmt.Errorf("invalid JSON: %w", err)}
	}

	compiled, err := compileRulesSchema()
	if err != nil {
		return nil, fmt.Errorf("policy: compile rules schema: %w", err)
	}
	if err := compiled.Validate(payload); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return nil, &DocumentError{Issues: collectIssues(validationErr), Cause: err}
		}
		return nil, &DocumentError{Cause: err}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DocumentError{Cause: err}
	}

	rules := make([]*DeletionRule, 0, len(doc.Rules))
	for i, entry := range doc.Rules {
		rules = append(rules, normalizeRule(entry, i))
	}
	return rules, nil
}

func normalizeRule(entry documentRule, position int) *DeletionRule {
	rule := &DeletionRule{
		ID:           strings.TrimSpace(entry.ID),
		Name:         strings.TrimSpace(entry.Name),
		Description:  strings.TrimSpace(entry.Description),
		Enabled:      entry.Enabled == nil || *entry.Enabled,
		Environments: trimAll(entry.Environments),
		Conditions:   entry.Conditions,
		Safety:       entry.Safety,
	}
	rule.ContentTypes = trimAll(entry.ContentTypes)

	if rule.ID == "" {
		rule.ID = deriveRuleID(rule.Name, position)
	}
	return rule
}

// deriveRuleID slugs the rule name so reports and logs get a stable,
// readable identifier even when the document omits one.
func deriveRuleID(name string, position int) string {
	if normalized, err := slug.Normalize(name); err == nil && normalized != "" {
		return normalized
	}
	return fmt.Sprintf("rule-%d", position+1)
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func compileRulesSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("rules.json", strings.NewReader(rulesSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("rules.json")
}

func collectIssues(err *jsonschema.ValidationError) []ValidationIssue {
	if err == nil {
		return nil
	}
	issues := []ValidationIssue{}
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, ValidationIssue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
