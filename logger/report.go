package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsTotal int64
	warnsTotal  int64
	progress    sync.Map // map[string]*int64
)

func recordWarn() {
	atomic.AddInt64(&warnsTotal, 1)
}

func recordError() {
	atomic.AddInt64(&errorsTotal, 1)
}

// RecordProgress adds n to the named progress counter shown in the runtime
// report. Call it per batch, not per record.
func RecordProgress(name string, n int64) {
	v, _ := progress.LoadOrStore(name, new(int64))
	atomic.AddInt64(v.(*int64), n)
}

// Progress returns the current value of a progress counter.
func Progress(name string) int64 {
	v, ok := progress.Load(name)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// StartReport begins periodic logging of system and progress statistics
// until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	var memUsedMB float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsedMB = float64(vm.Used) / 1024 / 1024
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	counters := map[string]int64{}
	progress.Range(func(k, v any) bool {
		counters[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	log.WithComponent("report").WithFields(Fields{
		"errors":        atomic.LoadInt64(&errorsTotal),
		"warns":         atomic.LoadInt64(&warnsTotal),
		"goroutines":    runtime.NumGoroutine(),
		"cpu_percent":   cpuPct,
		"memory_mb":     int64(memUsedMB),
		"heap_alloc_mb": int64(ms.HeapAlloc / 1024 / 1024),
		"gc_cycles":     ms.NumGC,
		"progress":      counters,
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memUsedMB)},
		{MetricName: aws.String("HeapAllocMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(ms.HeapAlloc) / 1024 / 1024)},
	}
	for name, n := range counters {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("Progress"),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String("Counter"), Value: aws.String(name)}},
			Value:      aws.Float64(float64(n)),
		})
	}
	publishMetrics(ctx, data)
}
