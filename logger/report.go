package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type streamStat struct {
	messages int64
	bytes    int64
}

var (
	errorsReader   int64
	errorsServer   int64
	warnsReader    int64
	warnsServer    int64
	quoteFetches   int64
	snapshotBuilds int64
	streamPushes   int64
	apiPulls       int64
	streams        sync.Map // map[string]*streamStat
)

func recordWarn(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsReader, 1)
	} else if strings.Contains(component, "server") {
		atomic.AddInt64(&warnsServer, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsReader, 1)
	} else if strings.Contains(component, "server") {
		atomic.AddInt64(&errorsServer, 1)
	}
}

// IncrementQuoteFetch counts one provider chart request and the payload size
// it returned.
func IncrementQuoteFetch(size int) {
	atomic.AddInt64(&quoteFetches, 1)
	recordStream("yahoo_rest", size)
}

// IncrementSnapshotBuild counts one completed market snapshot aggregation.
func IncrementSnapshotBuild() {
	atomic.AddInt64(&snapshotBuilds, 1)
}

// IncrementStreamPush counts one snapshot pushed over a websocket session.
func IncrementStreamPush(size int) {
	atomic.AddInt64(&streamPushes, 1)
	recordStream("ws_push", size)
}

// IncrementAPIPull counts one snapshot served from the pull endpoint.
func IncrementAPIPull(size int) {
	atomic.AddInt64(&apiPulls, 1)
	recordStream("api_pull", size)
}

func recordStream(name string, size int) {
	v, _ := streams.LoadOrStore(name, &streamStat{})
	st := v.(*streamStat)
	atomic.AddInt64(&st.messages, 1)
	atomic.AddInt64(&st.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of runtime and stream statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()

	streamData := map[string]map[string]int64{}
	streams.Range(func(k, v any) bool {
		name := k.(string)
		st := v.(*streamStat)
		streamData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&st.messages),
			"bytes":    atomic.LoadInt64(&st.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	memUsedMB := int64(0)
	if memStats != nil {
		memUsedMB = int64(memStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"errors_reader":   atomic.LoadInt64(&errorsReader),
		"errors_server":   atomic.LoadInt64(&errorsServer),
		"warns_reader":    atomic.LoadInt64(&warnsReader),
		"warns_server":    atomic.LoadInt64(&warnsServer),
		"quote_fetches":   atomic.LoadInt64(&quoteFetches),
		"snapshot_builds": atomic.LoadInt64(&snapshotBuilds),
		"stream_pushes":   atomic.LoadInt64(&streamPushes),
		"api_pulls":       atomic.LoadInt64(&apiPulls),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       memUsedMB,
		"streams":         streamData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsedMB))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsServer"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_server"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsServer"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_server"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("QuoteFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["quote_fetches"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("SnapshotBuilds"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshot_builds"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StreamPushes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["stream_pushes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("APIPulls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["api_pulls"].(int64)))},
	)

	for name, stats := range streamData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("StreamMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("StreamBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
