package metrics

import (
	"context"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

const (
	systemSampleInterval = 30 * time.Second
	systemErrorInterval  = 60 * time.Second
)

// SystemSampler periodically records host-level gauges (CPU, memory, disk,
// network) into the collector.
type SystemSampler struct {
	collector *Collector
	interval  time.Duration
	diskPath  string
}

func NewSystemSampler(collector *Collector) *SystemSampler {
	return &SystemSampler{
		collector: collector,
		interval:  systemSampleInterval,
		diskPath:  "/",
	}
}

// Run samples until ctx is cancelled. A failed sample extends the next sleep
// instead of terminating the loop.
func (s *SystemSampler) Run(ctx context.Context) {
	for {
		delay := s.interval
		if err := s.sample(); err != nil {
			log.Printf("system metrics: sample failed: %v", err)
			delay = systemErrorInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *SystemSampler) sample() error {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return err
	}
	if len(percents) > 0 {
		s.collector.SetGauge("system_cpu_percent", percents[0], nil)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return err
	}
	s.collector.SetGauge("system_memory_percent", vm.UsedPercent, nil)
	s.collector.SetGauge("system_memory_used_bytes", float64(vm.Used), nil)
	s.collector.SetGauge("system_memory_available_bytes", float64(vm.Available), nil)

	du, err := disk.Usage(s.diskPath)
	if err != nil {
		return err
	}
	s.collector.SetGauge("system_disk_percent", du.UsedPercent, nil)
	s.collector.SetGauge("system_disk_used_bytes", float64(du.Used), nil)
	s.collector.SetGauge("system_disk_free_bytes", float64(du.Free), nil)

	// Network counters are best effort; some environments expose none.
	if counters, err := psnet.IOCounters(false); err == nil && len(counters) > 0 {
		s.collector.SetGauge("system_network_bytes_sent", float64(counters[0].BytesSent), nil)
		s.collector.SetGauge("system_network_bytes_recv", float64(counters[0].BytesRecv), nil)
	}

	return nil
}
