package tools

import (
	"context"

	"github.com/njmorgan/loom/internal/knowledge"
	"github.com/njmorgan/loom/pkg/types"
)

// KnowledgeTool exposes the local knowledge retrieval service as a
// plan-invokable tool. Retrieval never fails; an empty corpus simply
// yields zero results.
type KnowledgeTool struct {
	retriever knowledge.Retriever
}

// NewKnowledgeTool wraps a retriever.
func NewKnowledgeTool(retriever knowledge.Retriever) *KnowledgeTool {
	return &KnowledgeTool{retriever: retriever}
}

func (t *KnowledgeTool) Kind() types.ToolKind { return types.ToolKnowledge }

func (t *KnowledgeTool) Validate(params map[string]types.Value) error {
	_, err := stringParam(params, "query")
	return err
}

func (t *KnowledgeTool) Invoke(ctx context.Context, params map[string]types.Value) (types.Value, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return types.Null(), err
	}
	limit := intParam(params, "limit", 5, 1, 20)

	hits := t.retriever.Retrieve(ctx, query, limit)

	results := make([]types.Value, 0, len(hits))
	for _, h := range hits {
		results = append(results, types.Object(map[string]types.Value{
			"id":              types.String(h.ID),
			"title":           types.String(h.Title),
			"snippet":         types.String(h.Snippet),
			"source_type":     types.String(h.SourceType),
			"relevance_score": types.Number(h.RelevanceScore),
		}))
	}
	return types.Object(map[string]types.Value{
		"results": types.Array(results...),
		"count":   types.Int(len(results)),
	}), nil
}
