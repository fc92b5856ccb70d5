package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/rustgreen/backend/internal/domain/analysis"
)

// ResultStore is an in-memory analysis.ResultRepository.
type ResultStore struct {
	mu       sync.RWMutex
	blocks   map[domain.CodeBlockID]*domain.CodeBlock
	analyses map[domain.AnalysisID]*domain.Analysis
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		blocks:   make(map[domain.CodeBlockID]*domain.CodeBlock),
		analyses: make(map[domain.AnalysisID]*domain.Analysis),
	}
}

func (s *ResultStore) SaveResult(ctx context.Context, block *domain.CodeBlock, a *domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc := *block
	ac := *a
	s.blocks[block.ID] = &bc
	s.analyses[a.ID] = &ac
	return nil
}

func (s *ResultStore) ListBySession(ctx context.Context, sessionID string) ([]*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Result
	for _, a := range s.analyses {
		if a.SessionID != sessionID {
			continue
		}
		ac := *a
		res := &domain.Result{Analysis: &ac}
		if b, ok := s.blocks[a.CodeBlockID]; ok {
			bc := *b
			res.CodeBlock = &bc
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Analysis.CreatedAt.Before(out[j].Analysis.CreatedAt)
	})
	return out, nil
}

func (s *ResultStore) CountBySession(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.analyses {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (s *ResultStore) DeleteBySession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.analyses {
		if a.SessionID != sessionID {
			continue
		}
		delete(s.blocks, a.CodeBlockID)
		delete(s.analyses, id)
	}
	return nil
}
