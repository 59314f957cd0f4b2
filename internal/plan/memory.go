package plan

import (
	"github.com/njmorgan/loom/pkg/types"
)

// ContextMemory holds the most recent completed result per invocation
// id and per tool kind, for parameter injection into later waves.
//
// It is written exclusively by the execution coordinator, and only at
// wave boundaries (never while a wave is in flight), so no locking is
// required.
type ContextMemory struct {
	byID   map[string]types.Value
	byTool map[types.ToolKind]types.Value
}

// NewContextMemory creates an empty ContextMemory.
func NewContextMemory() *ContextMemory {
	return &ContextMemory{
		byID:   make(map[string]types.Value),
		byTool: make(map[types.ToolKind]types.Value),
	}
}

// Store records a completed invocation's result under both its id and
// its tool kind. The tool-kind entry always reflects the most recent
// completion.
func (m *ContextMemory) Store(inv *Invocation) {
	if inv == nil || inv.Status != StatusCompleted {
		return
	}
	m.byID[inv.ID] = inv.Result
	m.byTool[inv.Tool] = inv.Result
}

// ResultFor returns the stored result for an invocation id.
func (m *ContextMemory) ResultFor(id string) (types.Value, bool) {
	v, ok := m.byID[id]
	return v, ok
}

// LatestFor returns the most recent completed result for a tool kind.
func (m *ContextMemory) LatestFor(kind types.ToolKind) (types.Value, bool) {
	v, ok := m.byTool[kind]
	return v, ok
}

// Len returns the number of stored invocation results.
func (m *ContextMemory) Len() int {
	return len(m.byID)
}
