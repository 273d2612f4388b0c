package observe

import (
	"sync"
	"testing"
	"time"
)

func TestValueLoadReturnsLatest(t *testing.T) {
	v := NewValue([]int{1})
	v.Set([]int{2, 3})
	got := v.Load()
	if len(got) != 2 || got[0] != 2 {
		t.Errorf("Load() = %v, want [2 3]", got)
	}
}

func TestValueChangesCoalesce(t *testing.T) {
	v := NewValue(0)
	ch, cancel := v.Changes()
	defer cancel()

	for i := 1; i <= 10; i++ {
		v.Set(i)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
	if got := v.Load(); got != 10 {
		t.Errorf("Load() = %d, want 10", got)
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestValueCancelStopsSignals(t *testing.T) {
	v := NewValue("a")
	ch, cancel := v.Changes()
	cancel()
	v.Set("b")
	select {
	case <-ch:
		t.Fatal("signal after cancel")
	default:
	}
}

func TestValueConcurrentReaders(t *testing.T) {
	v := NewValue(map[int]string{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m := v.Load()
				for range m {
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		next := map[int]string{i: "x"}
		v.Set(next)
	}
	wg.Wait()
}
