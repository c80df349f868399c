// Package intent classifies free-text tasks into research/build/deploy needs
// and a routing verdict. It is the single source of truth for "what does this
// text need" and is shared by the pipeline and the policy selector.
package intent

import "strings"

// Route says where a task's work is ultimately performed.
type Route string

const (
	RouteLocal  Route = "local"
	RouteRemote Route = "remote"
	RouteHybrid Route = "hybrid"
)

// Classification is the structured intent signal derived from a query.
type Classification struct {
	NeedsResearch bool  `json:"needs_research"`
	NeedsBuild    bool  `json:"needs_build"`
	NeedsDeploy   bool  `json:"needs_deploy"`
	Route         Route `json:"route"`
}

var (
	researchKeywords = []string{
		"research", "investigate", "analyze", "study", "compare",
		"find out", "look into", "what is", "how does", "explain",
		"survey", "literature", "report on", "summarize", "deep dive",
	}
	deployKeywords = []string{
		"deploy", "ship", "launch", "publish", "release",
		"production", "staging", "hosting", "domain", "server",
		"infrastructure", "ci/cd", "pipeline", "automate", "n8n",
	}
	buildKeywords = []string{
		"build", "create", "make", "generate", "develop",
		"code", "implement", "design", "scaffold", "app",
		"website", "api", "component", "page", "dashboard",
	}
)

// Classify maps query to a Classification. Matching is case-insensitive
// substring search; the function never fails.
func Classify(query string) Classification {
	q := strings.ToLower(query)

	c := Classification{
		NeedsResearch: containsAny(q, researchKeywords),
		NeedsDeploy:   containsAny(q, deployKeywords),
		NeedsBuild:    containsAny(q, buildKeywords),
	}

	switch {
	case c.NeedsDeploy && !c.NeedsBuild:
		c.Route = RouteRemote
	case c.NeedsDeploy && c.NeedsBuild:
		c.Route = RouteHybrid
	default:
		c.Route = RouteLocal
	}
	return c
}

// taskTypeRules is ordered; the first keyword hit wins.
var taskTypeRules = []struct {
	keyword  string
	taskType string
}{
	{"build", "fullstack"},
	{"code", "code"},
	{"develop", "fullstack"},
	{"research", "research"},
	{"investigate", "research"},
	{"analyze", "research"},
	{"presentation", "slides"},
	{"slides", "slides"},
	{"deck", "slides"},
	{"browse", "browser"},
	{"scrape", "browser"},
	{"navigate", "browser"},
}

// DefaultTaskType is returned by TaskType when no keyword matches.
const DefaultTaskType = "code"

// TaskType maps free text to a coarse task-type tag usable by the
// capability router.
func TaskType(text string) string {
	q := strings.ToLower(text)
	for _, rule := range taskTypeRules {
		if strings.Contains(q, rule.keyword) {
			return rule.taskType
		}
	}
	return DefaultTaskType
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
