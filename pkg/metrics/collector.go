package metrics

import (
	"strconv"
	"time"

	"github.com/kestrel-run/kestrel/pkg/types"
)

// RecordLister is the narrow view of the coordinator's registry the
// collector needs. The supervisor package's Manager satisfies it.
type RecordLister interface {
	List() []types.Record
}

// Collector periodically snapshots the registry into the process-state and
// resource-usage gauges.
type Collector struct {
	lister RecordLister
	stopCh chan struct{}
}

// NewCollector creates a collector reading from lister.
func NewCollector(lister RecordLister) *Collector {
	return &Collector{
		lister: lister,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting on a 15s tick, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	records := c.lister.List()

	stateCounts := make(map[types.ProcessState]int)
	for _, r := range records {
		stateCounts[r.State]++
		instance := strconv.Itoa(r.InstanceIndex)
		ProcessCPUPercent.WithLabelValues(r.Name, instance).Set(r.Snapshot.CPUPercent)
		ProcessMemoryBytes.WithLabelValues(r.Name, instance).Set(float64(r.Snapshot.MemoryBytes))
	}

	for _, state := range []types.ProcessState{
		types.StateStarting,
		types.StateOnline,
		types.StateStopping,
		types.StateStopped,
		types.StateErrored,
		types.StateRestarting,
	} {
		ProcessesTotal.WithLabelValues(string(state)).Set(float64(stateCounts[state]))
	}
}
