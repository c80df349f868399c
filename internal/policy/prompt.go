package policy

import (
	"fmt"
	"strings"
)

// PromptMeta describes what went into a built prompt.
type PromptMeta struct {
	Selected    []string          `json:"policy_layers_selected"`
	Strategy    Strategy          `json:"policy_strategy"`
	ReasonCodes []string          `json:"policy_reason_codes"`
	Loaded      []string          `json:"policy_layers_loaded"`
	Digests     map[string]string `json:"policy_layer_digests"`
}

// BuildPrompt selects layers for query and wraps the base and selected layer
// content in a policy package. It returns "" when selection is disabled or
// no layer has content.
func BuildPrompt(sel *Selector, store *Store, query string, metadata map[string]any) (string, PromptMeta) {
	selection := sel.Select(query, metadata)
	meta := PromptMeta{
		Selected:    selection.Layers,
		Strategy:    selection.Strategy,
		ReasonCodes: selection.ReasonCodes,
		Loaded:      []string{},
		Digests:     map[string]string{},
	}
	if selection.Strategy == StrategyDisabled || store == nil {
		return "", meta
	}

	ordered := append([]string{LayerBrain, LayerAgent}, selection.Layers...)

	var sections strings.Builder
	for _, name := range ordered {
		layer, ok := store.Layer(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&sections, "\n<policy_layer name=%q>\n%s\n</policy_layer>", name, layer.Content)
		meta.Loaded = append(meta.Loaded, name)
		meta.Digests[name] = layer.Digest
	}
	if len(meta.Loaded) == 0 {
		return "", meta
	}

	var b strings.Builder
	b.WriteString("<policy_package precedence=\"brain>agent>dynamic\">")
	b.WriteString("\nThe following policy layers are mandatory.")
	b.WriteString("\nIf conflicts occur, higher-precedence layers override lower layers.")
	fmt.Fprintf(&b, "\nSelection strategy: %s.", selection.Strategy)
	b.WriteString(sections.String())
	b.WriteString("\n</policy_package>")
	return b.String(), meta
}

// Builder pairs a Selector with a Store.
type Builder struct {
	Selector *Selector
	Store    *Store
}

// Build calls BuildPrompt. A nil Builder or Selector produces no prompt.
func (b *Builder) Build(query string, metadata map[string]any) (string, PromptMeta) {
	if b == nil || b.Selector == nil {
		return "", PromptMeta{Loaded: []string{}, Digests: map[string]string{}}
	}
	return BuildPrompt(b.Selector, b.Store, query, metadata)
}
