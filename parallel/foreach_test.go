package parallel

import "testing"
import "sync/atomic"
import "errors"

func TestForEachVisitsAll(t *testing.T) {
	var sum atomic.Int64
	err := ForEach(100, 7, func(i int) error {
		sum.Add(int64(i))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Load() != 4950 {
		t.Errorf("sum = %d, want 4950", sum.Load())
	}
}

func TestForEachError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(10, 1, func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestForEachEmpty(t *testing.T) {
	if err := ForEach(0, 0, func(int) error { panic("called") }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
