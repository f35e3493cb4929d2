package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchSizes []int
	calls      int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{float32(i)}
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// singleOnly exposes only Embed.
type singleOnly struct{ m *mockEmbedder }

func (s singleOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.m.Embed(ctx, text)
}

func TestInstrumentedEmbedder_EmbedRecordsUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2}, PromptTokens: 100, TotalTokens: 100,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", 0, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Fatalf("expected 2 dimensions, got %d", len(res.Embedding))
	}
	if usage.TotalTokens != 100 || !usage.Used {
		t.Errorf("usage = %+v, want 100 tokens used", *usage)
	}
}

func TestInstrumentedEmbedder_EmbedWithoutUsageCollector(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 3}}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, nil)

	if _, err := p.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstrumentedEmbedder_EmbedError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingUnavailable}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, zap.NewNop())

	if _, err := p.Embed(context.Background(), "hello"); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestInstrumentedEmbedder_BatchChunks(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{TotalTokens: 2, PromptTokens: 2}}
	p := NewInstrumentedEmbedder(inner, "test", "m", 3, zap.NewNop())

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.BatchEmbed(ctx, texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 7 {
		t.Fatalf("expected 7 embeddings, got %d", len(res.Embeddings))
	}
	if fmt.Sprint(inner.batchSizes) != "[3 3 1]" {
		t.Errorf("chunk sizes = %v, want [3 3 1]", inner.batchSizes)
	}
	if res.TotalTokens != 14 || usage.TotalTokens != 14 {
		t.Errorf("tokens = %d (usage %d), want 14", res.TotalTokens, usage.TotalTokens)
	}
}

func TestInstrumentedEmbedder_BatchEmpty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Fatalf("expected empty result, got %v, %v", res, err)
	}
	if len(inner.batchSizes) != 0 {
		t.Error("inner must not be called")
	}
}

func TestInstrumentedEmbedder_BatchInnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("provider down")}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, zap.NewNop())

	if _, err := p.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInstrumentedEmbedder_BatchFallbackToSingle(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 1}}
	p := NewInstrumentedEmbedder(singleOnly{inner}, "test", "m", 0, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 3 || len(res.Embeddings) != 3 {
		t.Errorf("fallback calls = %d, embeddings = %d", inner.calls, len(res.Embeddings))
	}
}
