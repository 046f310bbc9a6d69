package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeEmbedder struct {
	calls     int
	lastBatch []string
	err       error
	short     bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastBatch = texts
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, []float32{float32(len(texts[i])), 1})
	}
	return out, nil
}

func TestCachingEmbedder_ServesRepeatsFromCache(t *testing.T) {
	fake := &fakeEmbedder{}
	cache := NewCachingEmbedder(fake, 16, time.Minute)

	first, err := cache.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", fake.calls)
	}
	if len(first) != 2 || first[0][0] != 5 || first[1][0] != 4 {
		t.Fatalf("unexpected vectors: %v", first)
	}

	second, err := cache.Embed(context.Background(), []string{"alpha", "gamma"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", fake.calls)
	}
	if len(fake.lastBatch) != 1 || fake.lastBatch[0] != "gamma" {
		t.Errorf("expected only the miss to go upstream, got %v", fake.lastBatch)
	}
	if second[0][0] != 5 || second[1][0] != 5 {
		t.Errorf("unexpected vectors: %v", second)
	}
}

func TestCachingEmbedder_AllHitsSkipUpstream(t *testing.T) {
	fake := &fakeEmbedder{}
	cache := NewCachingEmbedder(fake, 16, time.Minute)

	if _, err := cache.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", fake.calls)
	}
}

func TestCachingEmbedder_TTLExpiry(t *testing.T) {
	fake := &fakeEmbedder{}
	cache := NewCachingEmbedder(fake, 16, 10*time.Millisecond)

	if _, err := cache.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, err := cache.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("expected expired entry to refetch, got %d calls", fake.calls)
	}
}

func TestCachingEmbedder_PropagatesErrors(t *testing.T) {
	fake := &fakeEmbedder{err: errors.New("boom")}
	cache := NewCachingEmbedder(fake, 16, time.Minute)

	if _, err := cache.Embed(context.Background(), []string{"alpha"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCachingEmbedder_CountMismatch(t *testing.T) {
	fake := &fakeEmbedder{short: true}
	cache := NewCachingEmbedder(fake, 16, time.Minute)

	if _, err := cache.Embed(context.Background(), []string{"alpha", "beta"}); err == nil {
		t.Fatal("expected error on short response")
	}
}

func TestCachingEmbedder_EmptyInput(t *testing.T) {
	fake := &fakeEmbedder{}
	cache := NewCachingEmbedder(fake, 16, time.Minute)

	vectors, err := cache.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil || fake.calls != 0 {
		t.Errorf("expected no work for empty input, got %v (%d calls)", vectors, fake.calls)
	}
}
