package reporter

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
)

// ParquetRecord is one archived opportunity row.
type ParquetRecord struct {
	SnapshotID string  `parquet:"name=snapshot_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp  int64   `parquet:"name=timestamp, type=INT64"`
	Instrument string  `parquet:"name=instrument, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyVenue   string  `parquet:"name=buy_venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellVenue  string  `parquet:"name=sell_venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyPrice   float64 `parquet:"name=buy_price, type=DOUBLE"`
	SellPrice  float64 `parquet:"name=sell_price, type=DOUBLE"`
	TotalFees  float64 `parquet:"name=total_fees, type=DOUBLE"`
	NetProfit  float64 `parquet:"name=net_profit, type=DOUBLE"`
	ProfitPct  float64 `parquet:"name=profit_pct, type=DOUBLE"`
	MinVolume  float64 `parquet:"name=min_volume, type=DOUBLE"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// Archiver buffers archived opportunities and flushes them to S3 as parquet
// files, partitioned by date and hour. It is both a Sink and a lifecycle
// component: Report buffers, the flush worker uploads.
type Archiver struct {
	config   *appconfig.Config
	s3Client *s3.Client
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	buffer      []ParquetRecord
	flushTicker *time.Ticker
}

// NewArchiver builds the S3 archiver from storage configuration. Missing
// AWS credentials fail construction rather than every flush.
func NewArchiver(cfg *appconfig.Config) (*Archiver, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	log.WithComponent("s3_archiver").WithFields(logger.Fields{
		"bucket": cfg.Storage.S3.Bucket,
		"region": cfg.Storage.S3.Region,
		"prefix": cfg.Storage.S3.Prefix,
	}).Info("s3 archiver initialized")

	return &Archiver{
		config:   cfg,
		s3Client: s3.NewFromConfig(awsCfg),
		wg:       &sync.WaitGroup{},
		log:      log,
	}, nil
}

// Report converts a snapshot's opportunities to parquet rows and buffers
// them for the next flush. Oversized buffers flush inline so a burst of
// opportunities cannot grow without bound.
func (a *Archiver) Report(s *models.Snapshot) {
	records := make([]ParquetRecord, 0, len(s.Opportunities))
	for _, o := range s.Opportunities {
		records = append(records, ParquetRecord{
			SnapshotID: s.ID,
			Timestamp:  s.StartedAt.UnixMilli(),
			Instrument: o.Instrument.Symbol(),
			BuyVenue:   string(o.BuyVenue),
			SellVenue:  string(o.SellVenue),
			BuyPrice:   o.BuyPrice,
			SellPrice:  o.SellPrice,
			TotalFees:  o.TotalFees,
			NetProfit:  o.NetProfit,
			ProfitPct:  o.ProfitPercentage,
			MinVolume:  o.MinVolume,
		})
	}
	if len(records) == 0 {
		return
	}

	a.mu.Lock()
	a.buffer = append(a.buffer, records...)
	overflow := a.config.Storage.S3.BatchSize > 0 && len(a.buffer) >= a.config.Storage.S3.BatchSize
	a.mu.Unlock()

	if overflow {
		a.flush("batch_size")
	}
}

func (a *Archiver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("s3 archiver already running")
	}
	a.running = true
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	interval := a.config.Storage.S3.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	a.flushTicker = time.NewTicker(interval)

	a.wg.Add(1)
	go a.flushWorker()

	a.log.WithComponent("s3_archiver").WithFields(logger.Fields{
		"flush_interval": interval,
	}).Info("s3 archiver started")
	return nil
}

func (a *Archiver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.cancel()
	a.mu.Unlock()

	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	a.log.WithComponent("s3_archiver").Info("stopping s3 archiver")
	a.wg.Wait()
	a.log.WithComponent("s3_archiver").Info("s3 archiver stopped")
}

func (a *Archiver) flushWorker() {
	defer a.wg.Done()

	log := a.log.WithComponent("s3_archiver").WithFields(logger.Fields{"worker": "flush"})
	for {
		select {
		case <-a.ctx.Done():
			a.flush("shutdown")
			log.Info("flush worker stopped")
			return
		case <-a.flushTicker.C:
			a.flush("interval")
		}
	}
}

func (a *Archiver) flush(reason string) {
	a.mu.Lock()
	records := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	if len(records) == 0 {
		return
	}

	log := a.log.WithComponent("s3_archiver").WithFields(logger.Fields{
		"records": len(records),
		"reason":  reason,
	})

	data, err := createParquetFile(records)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		return
	}

	key := a.objectKey(time.Now().UTC())
	if err := a.upload(key, data); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": a.config.Storage.S3.Bucket, "s3_key": key}).
			Error("failed to upload to S3")
		return
	}

	logger.IncrementArchiveWrite(int64(len(data)))
	log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)}).Info("opportunity batch archived")
}

// objectKey partitions archives by date and hour under the configured prefix.
func (a *Archiver) objectKey(ts time.Time) string {
	filename := fmt.Sprintf("opportunities_%s_%s.parquet", ts.Format("20060102150405"), uuid.New().String())
	key := filepath.Join(
		a.config.Storage.S3.Prefix,
		fmt.Sprintf("date=%s", ts.Format("2006-01-02")),
		fmt.Sprintf("hour=%02d", ts.Hour()),
		filename,
	)
	return filepath.ToSlash(key)
}

func createParquetFile(records []ParquetRecord) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := writer.NewParquetWriter(fw, new(ParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

func (a *Archiver) upload(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":     "parquet",
			"arbiscan-version": a.config.Arbiscan.Version,
		},
	}

	ctx := context.WithoutCancel(a.ctx)
	_, err := a.s3Client.PutObject(ctx, input)
	return err
}
