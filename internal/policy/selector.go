// Package policy decides which auxiliary instruction layers apply to a
// request and assembles their content into a prompt package.
//
// Selection precedence, first non-empty result wins:
//
//	disabled   -> empty selection, no content read
//	metadata   -> explicit override in request metadata
//	rules      -> per-layer keyword rules over the query
//	classifier -> intent.Classify fallback
//	default    -> ["task"]
package policy

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/switchyard/internal/intent"
)

// Layer identifiers. Dynamic layers are selected per request; base layers
// (brain, agent) are always loaded ahead of them.
const (
	LayerBrain  = "brain"
	LayerAgent  = "agent"
	LayerHooks  = "hooks"
	LayerTask   = "task"
	LayerSkills = "skills"
)

// Strategy names how a Selection was reached.
type Strategy string

const (
	StrategyMetadata   Strategy = "metadata"
	StrategyRules      Strategy = "rules"
	StrategyClassifier Strategy = "classifier"
	StrategyDefault    Strategy = "default"
	StrategyDisabled   Strategy = "disabled"
)

// Metadata keys understood by the selector.
const (
	MetaLayersSelected = "policy_layers_selected"
	MetaLayersDisabled = "policy_layers_disabled"
)

// dynamicLayers is the canonical order for selected layers.
var dynamicLayers = []string{LayerHooks, LayerTask, LayerSkills}

var ruleKeywords = map[string][]string{
	LayerHooks: {
		"hook", "trigger", "event", "webhook", "session",
		"lifecycle", "on ", "when ", "if ",
	},
	LayerTask: {
		"task", "implement", "fix", "build", "create",
		"deploy", "ship", "production", "release", "rollback",
	},
	LayerSkills: {
		"api", "integrat", "oauth", "database", "schema",
		"frontend", "backend", "design", "ui", "ux", "research",
	},
}

// Selection is produced fresh per call and never mutated afterwards.
type Selection struct {
	Layers      []string `json:"selected_layers"`
	Strategy    Strategy `json:"strategy"`
	ReasonCodes []string `json:"reason_codes"`
}

// Selector picks dynamic policy layers.
type Selector struct {
	disabled bool
}

// NewSelector returns a Selector. When disabled is true every call returns
// the disabled selection.
func NewSelector(disabled bool) *Selector {
	return &Selector{disabled: disabled}
}

// Disabled reports whether layer injection is turned off by configuration.
func (s *Selector) Disabled() bool {
	return s.disabled
}

// Select applies the precedence rules to query and metadata. It never fails;
// malformed metadata is ignored and an empty query falls through to default.
func (s *Selector) Select(query string, metadata map[string]any) Selection {
	if s.disabled || metaBool(metadata, MetaLayersDisabled) {
		return Selection{
			Layers:      []string{},
			Strategy:    StrategyDisabled,
			ReasonCodes: []string{"disabled"},
		}
	}

	if forced, ok := metaStrings(metadata, MetaLayersSelected); ok && len(forced) > 0 {
		return Selection{
			Layers:      canonical(forced),
			Strategy:    StrategyMetadata,
			ReasonCodes: []string{"metadata_forced"},
		}
	}

	if layers := rulesSelect(query); len(layers) > 0 {
		return Selection{
			Layers:      layers,
			Strategy:    StrategyRules,
			ReasonCodes: []string{"rules_match"},
		}
	}

	if layers := classifierSelect(query); len(layers) > 0 {
		return Selection{
			Layers:      layers,
			Strategy:    StrategyClassifier,
			ReasonCodes: []string{"classifier_fallback"},
		}
	}

	return Selection{
		Layers:      []string{LayerTask},
		Strategy:    StrategyDefault,
		ReasonCodes: []string{"default_task"},
	}
}

func rulesSelect(query string) []string {
	q := strings.ToLower(query)
	selected := []string{}
	for _, layer := range dynamicLayers {
		for _, kw := range ruleKeywords[layer] {
			if strings.Contains(q, kw) {
				selected = append(selected, layer)
				break
			}
		}
	}
	return selected
}

func classifierSelect(query string) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	c := intent.Classify(query)

	picked := make(map[string]bool, len(dynamicLayers))
	if c.NeedsResearch || c.NeedsBuild {
		picked[LayerSkills] = true
	}
	if c.NeedsBuild || c.NeedsDeploy {
		picked[LayerTask] = true
	}
	if c.NeedsDeploy {
		picked[LayerHooks] = true
	}

	out := []string{}
	for _, layer := range dynamicLayers {
		if picked[layer] {
			out = append(out, layer)
		}
	}
	return out
}

// canonical filters names to known dynamic layers in canonical order.
func canonical(names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	out := []string{}
	for _, layer := range dynamicLayers {
		if want[layer] {
			out = append(out, layer)
		}
	}
	return out
}

func metaBool(metadata map[string]any, key string) bool {
	v, ok := metadata[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// metaStrings accepts []string or a decoded JSON array ([]any).
func metaStrings(metadata map[string]any, key string) ([]string, bool) {
	switch v := metadata[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, true
	default:
		return nil, false
	}
}
