// Package capability partitions coarse task-type tags into locally and
// remotely handled sets.
package capability

import "sort"

// Target is where a task type is executed.
type Target string

const (
	Local  Target = "local"
	Remote Target = "remote"
)

// The two sets are disjoint. Types in neither set default to Local.
var (
	localTypes = map[string]struct{}{
		"chat":      {},
		"research":  {},
		"code":      {},
		"fullstack": {},
		"slides":    {},
		"browser":   {},
		"analysis":  {},
	}
	remoteTypes = map[string]struct{}{
		"deploy":         {},
		"hosting":        {},
		"domain":         {},
		"infrastructure": {},
		"ci_cd":          {},
		"automation":     {},
		"workflow":       {},
	}
)

// Map is the advertised capability partition.
type Map struct {
	Local  []string `json:"local"`
	Remote []string `json:"remote"`
}

// Router decides local vs remote execution for task types.
type Router struct{}

// NewRouter returns a Router over the static capability sets.
func NewRouter() *Router {
	return &Router{}
}

// Route returns Remote only when taskType is remote-capable and remote
// execution is enabled; every other case is Local.
func (r *Router) Route(taskType string, remoteEnabled bool) Target {
	if _, ok := remoteTypes[taskType]; ok && remoteEnabled {
		return Remote
	}
	return Local
}

// IsKnown reports whether taskType belongs to either set.
func (r *Router) IsKnown(taskType string) bool {
	if _, ok := localTypes[taskType]; ok {
		return true
	}
	_, ok := remoteTypes[taskType]
	return ok
}

// Map returns both sets in sorted order. The remote set is empty when remote
// execution is disabled so unusable capabilities are not advertised.
func (r *Router) Map(remoteEnabled bool) Map {
	m := Map{
		Local:  sortedKeys(localTypes),
		Remote: []string{},
	}
	if remoteEnabled {
		m.Remote = sortedKeys(remoteTypes)
	}
	return m
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
