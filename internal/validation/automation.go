package validation

import (
	"fmt"
	"strings"

	"github.com/hassviz/hassviz/internal/graph"
	"github.com/hassviz/hassviz/pkg/schema"
)

// AutomationValidator runs the two-stage validation pipeline: structural
// (JSON Schema) then semantic (checks the schema cannot express). Warnings
// never fail validation; the parser degrades gracefully on the conditions
// they describe.
type AutomationValidator struct {
	structural *JSONSchemaValidator
}

// NewAutomationValidator creates the full pipeline.
func NewAutomationValidator() (*AutomationValidator, error) {
	structural, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &AutomationValidator{structural: structural}, nil
}

// Validate runs both stages against one automation configuration.
// Structural errors short-circuit the semantic stage: a config that is not
// even shaped like an automation produces noise, not insight, downstream.
func (v *AutomationValidator) Validate(config any) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if err := v.structural.ValidateConfig(config); err != nil {
		addStructuralIssues(result, err)
		return result
	}

	m := config.(map[string]any)
	v.checkSections(m, result)
	v.checkActionTree(m, result)
	return result
}

// ValidateConfig implements Validator.
func (v *AutomationValidator) ValidateConfig(config any) error {
	return v.Validate(config).ToError()
}

// ValidateBatch validates a set of automations together, adding checks that
// only make sense across documents: duplicate automation ids.
func (v *AutomationValidator) ValidateBatch(automations []schema.Automation) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]string, len(automations))
	for i, a := range automations {
		path := fmt.Sprintf("/%d", i)
		if a.ID != "" {
			if prev, ok := seen[a.ID]; ok {
				result.AddError(path, "duplicate_id",
					fmt.Sprintf("automation id %q already used at %s", a.ID, prev))
			} else {
				seen[a.ID] = path
			}
		}
		sub := v.Validate(a.Config)
		prefixPaths(sub, path)
		result.Merge(sub)
	}
	return result
}

// checkSections warns about absent or empty trigger/action sections. Either
// makes the automation inert but still renderable.
func (v *AutomationValidator) checkSections(config map[string]any, result *schema.ValidationResult) {
	if len(section(config, "trigger", "triggers")) == 0 {
		result.AddWarning("/trigger", "empty_section", "automation has no triggers")
	}
	if len(section(config, "action", "actions")) == 0 {
		result.AddWarning("/action", "empty_section", "automation has no actions")
	}
}

// checkActionTree walks nested action constructs, enforcing the recursion
// depth limit and flagging choose options without a sequence.
func (v *AutomationValidator) checkActionTree(config map[string]any, result *schema.ValidationResult) {
	walkActions(section(config, "action", "actions"), "/action", 0, result)
}

func walkActions(actions []any, path string, depth int, result *schema.ValidationResult) {
	if depth > graph.DefaultMaxDepth {
		result.AddError(path, "depth_exceeded",
			fmt.Sprintf("nested action depth exceeds limit of %d", graph.DefaultMaxDepth))
		return
	}

	for i, a := range actions {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		p := fmt.Sprintf("%s/%d", path, i)

		if raw, found := m["choose"]; found {
			for j, opt := range asList(raw) {
				option, ok := opt.(map[string]any)
				if !ok {
					continue
				}
				op := fmt.Sprintf("%s/choose/%d", p, j)
				if len(asList(option["sequence"])) == 0 {
					result.AddWarning(op, "empty_branch", "choose option has no sequence")
				}
				walkActions(asList(option["sequence"]), op+"/sequence", depth+1, result)
			}
			walkActions(asList(m["default"]), p+"/default", depth+1, result)
		}
		if _, found := m["if"]; found {
			walkActions(asList(m["then"]), p+"/then", depth+1, result)
			walkActions(asList(m["else"]), p+"/else", depth+1, result)
		}
		if raw, found := m["parallel"]; found {
			for j, branch := range asList(raw) {
				seq, ok := branch.([]any)
				if !ok {
					seq = []any{branch}
				}
				walkActions(seq, fmt.Sprintf("%s/parallel/%d", p, j), depth+1, result)
			}
		}
		if raw, found := m["repeat"]; found {
			if cfg, ok := raw.(map[string]any); ok {
				walkActions(asList(cfg["sequence"]), p+"/repeat/sequence", depth+1, result)
			}
		}
	}
}

// addStructuralIssues flattens a structural VizError into per-violation
// issues, keeping the instance location as the issue path.
func addStructuralIssues(result *schema.ValidationResult, err error) {
	verr, ok := err.(*schema.VizError)
	if !ok {
		result.AddError("/", "structural", err.Error())
		return
	}

	violations, _ := verr.Details["violations"].([]string)
	if len(violations) == 0 {
		result.AddError("/", string(verr.Code), verr.Message)
		return
	}
	for _, v := range violations {
		path, msg := "/", v
		if loc, rest, found := strings.Cut(v, ": "); found && strings.HasPrefix(loc, "/") {
			path, msg = loc, rest
		}
		result.AddError(path, "structural", msg)
	}
}

func prefixPaths(result *schema.ValidationResult, prefix string) {
	for i := range result.Errors {
		result.Errors[i].Path = prefix + result.Errors[i].Path
	}
	for i := range result.Warnings {
		result.Warnings[i].Path = prefix + result.Warnings[i].Path
	}
}

// section reads a config section accepting singular and plural key names,
// plural winning when both are present.
func section(config map[string]any, singular, plural string) []any {
	v := config[plural]
	if v == nil {
		v = config[singular]
	}
	return asList(v)
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}
