package observability

import (
	"sync"
	"testing"
	"time"
)

func TestThresholdStats_RecordConcurrent(t *testing.T) {
	s := NewThresholdStats(time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				s.Record("approval", 50)
				s.Record("denial", 2)
			}
		}()
	}
	wg.Wait()

	top := s.TopMetrics(10)
	if len(top) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(top))
	}
	expected := int64(numGoroutines * recordsPerGoroutine)
	for _, m := range top {
		if m.Frequency != expected {
			t.Errorf("expected frequency %d for %s, got %d", expected, m.Metric, m.Frequency)
		}
	}
}

func TestThresholdStats_Ordering(t *testing.T) {
	s := NewThresholdStats(time.Hour)
	for i := 0; i < 3; i++ {
		s.Record("denial", 2)
	}
	for i := 0; i < 5; i++ {
		s.Record("approval", 100)
	}
	s.Record("approval", 2500)
	s.Record("approval", 0.5)

	top := s.TopMetrics(1)
	if len(top) != 1 || top[0].Metric != "approval" {
		t.Fatalf("expected approval first, got %+v", top)
	}
	if top[0].Min != 0.5 || top[0].Max != 2500 {
		t.Errorf("expected range [0.5, 2500], got [%v, %v]", top[0].Min, top[0].Max)
	}

	thresholds := s.TopThresholds("approval", 10)
	want := []ThresholdCount{{"100", 5}, {"0.5", 1}, {"2500", 1}}
	if len(thresholds) != len(want) {
		t.Fatalf("expected %d thresholds, got %d", len(want), len(thresholds))
	}
	for i := range want {
		if thresholds[i] != want[i] {
			t.Errorf("threshold %d: expected %+v, got %+v", i, want[i], thresholds[i])
		}
	}

	if got := s.TopThresholds("withdrawn", 3); len(got) != 0 {
		t.Errorf("expected no thresholds for unknown metric, got %v", got)
	}
	if got := s.TopMetrics(0); len(got) != 0 {
		t.Errorf("expected empty result for n=0, got %v", got)
	}
}

func TestThresholdStats_CopiesAreIndependent(t *testing.T) {
	s := NewThresholdStats(time.Hour)
	s.Record("approval", 50)

	top := s.TopMetrics(1)
	top[0].Thresholds["50"] = 99
	top[0].Frequency = 99

	again := s.TopMetrics(1)
	if again[0].Frequency != 1 || again[0].Thresholds["50"] != 1 {
		t.Errorf("stats were modified through a returned copy: %+v", again[0])
	}
}

func TestThresholdStats_Prune(t *testing.T) {
	s := NewThresholdStats(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Record("approval", 50)
	now = now.Add(2 * time.Minute)
	s.Record("denial", 2)

	s.Prune()

	top := s.TopMetrics(10)
	if len(top) != 1 || top[0].Metric != "denial" {
		t.Errorf("expected only denial to survive pruning, got %+v", top)
	}
}
