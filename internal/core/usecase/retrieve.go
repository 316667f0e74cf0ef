package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tenantic/assistant-core/internal/core/domain"
	"github.com/tenantic/assistant-core/internal/core/ports"
)

// FragmentRanker scores and orders candidate fragments for a query vector.
// Both implementations must agree on ordering and limiting so the linear
// fallback is indistinguishable from the accelerated index.
type FragmentRanker interface {
	Rank(ctx context.Context, queryVector []float32, documentIDs []string, topK int) ([]domain.Evidence, error)
}

// LinearRanker scans candidate fragments in memory. It is the degradation
// path used when no accelerated index is available.
type LinearRanker struct {
	fragments ports.FragmentStore
}

func NewLinearRanker(fragments ports.FragmentStore) *LinearRanker {
	return &LinearRanker{fragments: fragments}
}

func (r *LinearRanker) Rank(ctx context.Context, queryVector []float32, documentIDs []string, topK int) ([]domain.Evidence, error) {
	candidates, err := r.fragments.ListByDocuments(ctx, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("list candidate fragments: %w", err)
	}

	out := make([]domain.Evidence, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.Evidence{
			DocumentID:    c.DocumentID,
			DocumentName:  c.DocumentName,
			Version:       c.Version,
			FragmentIndex: c.Index,
			Text:          c.Text,
			Score:         cosineSimilarity(queryVector, c.Vector),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].FragmentIndex < out[j].FragmentIndex
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// IndexRanker delegates ordering and limiting to the store's accelerated
// similarity operation.
type IndexRanker struct {
	searcher ports.FragmentSearcher
}

func NewIndexRanker(searcher ports.FragmentSearcher) *IndexRanker {
	return &IndexRanker{searcher: searcher}
}

func (r *IndexRanker) Rank(ctx context.Context, queryVector []float32, documentIDs []string, topK int) ([]domain.Evidence, error) {
	return r.searcher.Search(ctx, queryVector, documentIDs, topK)
}

// RetrieveContextUseCase turns a query into a context string plus evidence,
// restricted to the documents the agent may see.
type RetrieveContextUseCase struct {
	embedder  ports.Embedder
	documents ports.DocumentStore
	ranker    FragmentRanker
}

func NewRetrieveContextUseCase(
	embedder ports.Embedder,
	documents ports.DocumentStore,
	ranker FragmentRanker,
) *RetrieveContextUseCase {
	return &RetrieveContextUseCase{
		embedder:  embedder,
		documents: documents,
		ranker:    ranker,
	}
}

func (uc *RetrieveContextUseCase) Retrieve(ctx context.Context, query string, agent *domain.Agent, topK int) (*domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = 5
	}

	queryVector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}

	docIDs, err := uc.documents.ListCompletedIDsForAgent(ctx, agent.ID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "resolve candidate documents", err)
	}
	if len(docIDs) == 0 {
		return &domain.RetrievalResult{Evidence: []domain.Evidence{}}, nil
	}

	evidence, err := uc.ranker.Rank(ctx, queryVector, docIDs, topK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "rank fragments", err)
	}

	evidence = dropBelowFloor(evidence, RetrievalScoreFloor)
	return &domain.RetrievalResult{
		Context:  buildContext(evidence),
		Evidence: evidence,
	}, nil
}

// dropBelowFloor enforces the shared similarity floor after either ranking
// strategy has run.
func dropBelowFloor(evidence []domain.Evidence, floor float64) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Score >= floor {
			out = append(out, ev)
		}
	}
	return out
}

func buildContext(evidence []domain.Evidence) string {
	if len(evidence) == 0 {
		return ""
	}
	parts := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		parts = append(parts, fmt.Sprintf("[%s (v%d)]\n%s", ev.DocumentName, ev.Version, ev.Text))
	}
	return strings.Join(parts, "\n\n")
}
