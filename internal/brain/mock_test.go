package brain

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/agenthands/brain/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	Vector []float32
	Calls  int
	Err    error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, embeddingModel string, texts []string) ([][]float32, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := f.Vector
		if vec == nil {
			vec = []float32{0.1, 0.2, 0.3}
		}
		out[i] = vec
	}
	return out, nil
}

// fakeVectorIndex returns canned matches per profile id and records the
// filters it was queried with.
type fakeVectorIndex struct {
	Matches map[string][]store.VectorMatch
	Filters []store.VectorFilter
	Err     error
}

func (f *fakeVectorIndex) UpsertEntries(ctx context.Context, entries []store.VectorEntry) error {
	return nil
}

func (f *fakeVectorIndex) Query(ctx context.Context, profileID string, embedding []float32, topK int, filter store.VectorFilter) ([]store.VectorMatch, error) {
	f.Filters = append(f.Filters, filter)
	if f.Err != nil {
		return nil, f.Err
	}
	matches := f.Matches[profileID]
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

type fakeLLM struct {
	Response string
	Prompts  []string
	Err      error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}

var errBoom = errors.New("boom")
