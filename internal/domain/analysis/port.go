package analysis

import "context"

// Result pairs a persisted Analysis with the CodeBlock it references.
type Result struct {
	Analysis  *Analysis  `json:"analysis"`
	CodeBlock *CodeBlock `json:"code_block"`
}

// ResultRepository port. SaveResult writes the block and its analysis in one
// transaction, block first, so an analysis row never references a missing block.
type ResultRepository interface {
	SaveResult(ctx context.Context, block *CodeBlock, a *Analysis) error
	ListBySession(ctx context.Context, sessionID string) ([]*Result, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}
