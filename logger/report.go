package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsScan        int64
	warnsScan         int64
	quoteFetches      int64
	fetchFailures     int64
	cyclesCompleted   int64
	opportunitiesSeen int64
	archiveWrites     int64
	channels          sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "scan") || strings.Contains(component, "venue") {
		atomic.AddInt64(&warnsScan, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "scan") || strings.Contains(component, "venue") {
		atomic.AddInt64(&errorsScan, 1)
	}
}

// IncrementQuoteFetch counts one successful quote retrieval.
func IncrementQuoteFetch() {
	atomic.AddInt64(&quoteFetches, 1)
}

// IncrementFetchFailure counts one failed quote retrieval.
func IncrementFetchFailure() {
	atomic.AddInt64(&fetchFailures, 1)
}

// IncrementCycle counts one completed scan cycle and the opportunities it found.
func IncrementCycle(opportunities int) {
	atomic.AddInt64(&cyclesCompleted, 1)
	atomic.AddInt64(&opportunitiesSeen, int64(opportunities))
}

// IncrementArchiveWrite counts one archive object written, with its size.
func IncrementArchiveWrite(size int64) {
	atomic.AddInt64(&archiveWrites, 1)
	recordChannel("s3_archive", int(size))
}

// RecordChannelMessage tracks throughput of a named channel.
func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of scan and channel statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
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

func logReport(ctx context.Context, log *Log) {
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	fields := Fields{
		"errors_scan":    atomic.LoadInt64(&errorsScan),
		"warns_scan":     atomic.LoadInt64(&warnsScan),
		"quote_fetches":  atomic.LoadInt64(&quoteFetches),
		"fetch_failures": atomic.LoadInt64(&fetchFailures),
		"cycles":         atomic.LoadInt64(&cyclesCompleted),
		"opportunities":  atomic.LoadInt64(&opportunitiesSeen),
		"archive_writes": atomic.LoadInt64(&archiveWrites),
		"goroutines":     runtime.NumGoroutine(),
		"channels":       channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("QuoteFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["quote_fetches"].(int64)))},
		{MetricName: aws.String("FetchFailures"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["fetch_failures"].(int64)))},
		{MetricName: aws.String("ScanCycles"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cycles"].(int64)))},
		{MetricName: aws.String("Opportunities"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["opportunities"].(int64)))},
		{MetricName: aws.String("ArchiveWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["archive_writes"].(int64)))},
		{MetricName: aws.String("ScanErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_scan"].(int64)))},
		{MetricName: aws.String("ScanWarns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_scan"].(int64)))},
	}

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
