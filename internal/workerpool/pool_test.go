package workerpool

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestRunProcessesAllItems(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	results := Run(context.Background(), 4, items, func(_ context.Context, job Job[int]) (int, error) {
		return job.Value * 2, nil
	})

	var got []int
	for r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Out)
	}
	sort.Ints(got)
	want := []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDrainReturnsFirstError(t *testing.T) {
	items := []int{1, 2, 3}
	boom := errors.New("boom")
	results := Run(context.Background(), 2, items, func(_ context.Context, job Job[int]) (int, error) {
		if job.Value == 2 {
			return 0, boom
		}
		return job.Value, nil
	})

	err := Drain(results, func(r Result[int, int]) error {
		return r.Err
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom error, got %v", err)
	}
}

func TestRunRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, job Job[int]) (int, error) {
		return job.Value, nil
	})

	for r := range results {
		if r.Err == nil {
			t.Error("expected canceled-context error")
		}
	}
}

func TestRunSingleItem(t *testing.T) {
	results := Run(context.Background(), 8, []string{"only"}, func(_ context.Context, job Job[string]) (string, error) {
		return job.Value + "!", nil
	})
	count := 0
	for r := range results {
		count++
		if r.Out != "only!" {
			t.Errorf("got %q, want %q", r.Out, "only!")
		}
	}
	if count != 1 {
		t.Errorf("expected 1 result, got %d", count)
	}
}
