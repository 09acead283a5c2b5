package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeSequenceSource struct {
	mu        sync.Mutex
	sequences map[string]int64
	err       error
}

func (f *fakeSequenceSource) NextSequence(_ context.Context, prefix string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sequences == nil {
		f.sequences = map[string]int64{}
	}
	f.sequences[prefix]++
	return f.sequences[prefix], nil
}

func TestGenerate(t *testing.T) {
	gen := NewGenerator(&fakeSequenceSource{})

	first, err := gen.Generate(context.Background(), "HR")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first != "HR-0000000001" {
		t.Fatalf("id = %q, want %q", first, "HR-0000000001")
	}

	second, err := gen.Generate(context.Background(), "HR")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if second != "HR-0000000002" {
		t.Fatalf("id = %q, want %q", second, "HR-0000000002")
	}
}

func TestGenerateNormalizesPrefix(t *testing.T) {
	gen := NewGenerator(&fakeSequenceSource{})

	id, err := gen.Generate(context.Background(), " hr ")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id != "HR-0000000001" {
		t.Fatalf("id = %q, want %q", id, "HR-0000000001")
	}
}

func TestGenerateRequiresPrefix(t *testing.T) {
	gen := NewGenerator(&fakeSequenceSource{})

	if _, err := gen.Generate(context.Background(), "  "); err == nil {
		t.Fatal("expected empty prefix error")
	}
}

func TestGenerateWidensPastPadWidth(t *testing.T) {
	source := &fakeSequenceSource{sequences: map[string]int64{"CASE": 9999999999}}
	gen := NewGenerator(source)

	id, err := gen.Generate(context.Background(), "CASE")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id != "CASE-10000000000" {
		t.Fatalf("id = %q, want %q", id, "CASE-10000000000")
	}
}

func TestGeneratePropagatesSourceError(t *testing.T) {
	wantErr := errors.New("watermark unavailable")
	gen := NewGenerator(&fakeSequenceSource{err: wantErr})

	if _, err := gen.Generate(context.Background(), "HR"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestGenerateConcurrentIdsAreUnique(t *testing.T) {
	gen := NewGenerator(&fakeSequenceSource{})

	const workers = 32
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prefix := "HR"
			if i%2 == 0 {
				prefix = "IT"
			}
			ids[i], errs[i] = gen.Generate(context.Background(), prefix)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if seen[ids[i]] {
			t.Fatalf("duplicate id %q", ids[i])
		}
		seen[ids[i]] = true
	}
}
