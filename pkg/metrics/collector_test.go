package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("reading gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

type fakeLister struct {
	records []types.Record
}

func (f fakeLister) List() []types.Record {
	return f.records
}

// TestCollectorCollectSetsGaugesFromRecords exercises collect() directly
// rather than waiting on the internal ticker.
func TestCollectorCollectSetsGaugesFromRecords(t *testing.T) {
	lister := fakeLister{records: []types.Record{
		{Name: "web", InstanceIndex: 0, State: types.StateOnline, Snapshot: types.Snapshot{CPUPercent: 12.5, MemoryBytes: 2048}},
		{Name: "worker", InstanceIndex: 1, State: types.StateRestarting},
	}}

	c := NewCollector(lister)
	if c == nil {
		t.Fatal("NewCollector() returned nil")
	}

	// Should not panic when called directly.
	c.collect()

	if got := gaugeValue(t, ProcessCPUPercent.WithLabelValues("web", "0")); got != 12.5 {
		t.Errorf("cpu gauge for web = %v, want 12.5", got)
	}
	if got := gaugeValue(t, ProcessMemoryBytes.WithLabelValues("web", "0")); got != 2048 {
		t.Errorf("memory gauge for web = %v, want 2048", got)
	}
	if got := gaugeValue(t, ProcessesTotal.WithLabelValues(string(types.StateOnline))); got != 1 {
		t.Errorf("online process count = %v, want 1", got)
	}
	if got := gaugeValue(t, ProcessesTotal.WithLabelValues(string(types.StateRestarting))); got != 1 {
		t.Errorf("restarting process count = %v, want 1", got)
	}
}

// TestCollectorStartStopDoesNotBlock verifies the background loop can be
// started and stopped without hanging.
func TestCollectorStartStopDoesNotBlock(t *testing.T) {
	c := NewCollector(fakeLister{})
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
