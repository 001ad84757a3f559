package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("expected no counting when disabled")
	}
	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 || len(snapshot.Histograms) != 0 {
		t.Fatalf("expected empty snapshot when disabled, got %+v", snapshot)
	}
}

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricValidateLatency, 40*time.Millisecond)
	m.Observe(MetricValidateLatency, 2*time.Second)

	snapshot := m.Snapshot()
	if snapshot.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("expected 2 successes, got %d", snapshot.Counters[MetricLoginSuccess])
	}
	if snapshot.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 failure, got %d", snapshot.Counters[MetricLoginFailure])
	}

	buckets := snapshot.Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket placement: %v", buckets)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLogout)

	snapshot := m.Snapshot()
	snapshot.Counters[MetricLogout] = 99

	if m.Value(MetricLogout) != 1 {
		t.Fatal("expected snapshot mutation not to affect live counters")
	}
}
