// Package types defines shared types used across all Loom modules.
package types

// ToolKind identifies an external tool the assistant can invoke.
type ToolKind string

const (
	// ToolWebSearch queries a web search API.
	ToolWebSearch ToolKind = "web_search"
	// ToolWebScrape fetches the content of a single URL.
	ToolWebScrape ToolKind = "web_scrape"
	// ToolCodeRepo looks up repositories, commits, and code.
	ToolCodeRepo ToolKind = "code_repo"
	// ToolIssueTracker queries an issue/ticket tracker.
	ToolIssueTracker ToolKind = "issue_tracker"
	// ToolKnowledge retrieves from the local knowledge base.
	ToolKnowledge ToolKind = "knowledge_base"
)

// AllToolKinds returns all valid tool kinds for validation.
func AllToolKinds() []ToolKind {
	return []ToolKind{
		ToolWebSearch,
		ToolWebScrape,
		ToolCodeRepo,
		ToolIssueTracker,
		ToolKnowledge,
	}
}

// String returns the string representation of a ToolKind.
func (t ToolKind) String() string {
	return string(t)
}

// IsValid checks if a ToolKind is a known valid kind.
func (t ToolKind) IsValid() bool {
	for _, valid := range AllToolKinds() {
		if t == valid {
			return true
		}
	}
	return false
}
