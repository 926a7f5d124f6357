package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// multipartThreshold is the payload size above which the archiver switches
// from a single PutObject to a managed multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// MarketArchiveStore provides read access to records whose resolution
// window has already closed. The Postgres market record store satisfies it.
type MarketArchiveStore interface {
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.MarketRecord, error)
}

// ArchiverConfig controls the archiver's sweep cadence.
type ArchiverConfig struct {
	// Interval is the time between archive sweeps. Defaults to 24h.
	Interval time.Duration
}

func (c ArchiverConfig) withDefaults() ArchiverConfig {
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	return c
}

// Archiver periodically snapshots market records whose resolution window
// has closed to a monthly JSONL object. A month's object is written once;
// sweeps that find it already present skip the upload.
type Archiver struct {
	client *Client
	store  MarketArchiveStore
	cfg    ArchiverConfig
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing to the client's configured bucket.
func NewArchiver(client *Client, store MarketArchiveStore, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		client: client,
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// RunLoop sweeps immediately and then on every interval tick until the
// context is cancelled. Sweep failures are logged and retried on the next
// tick.
func (a *Archiver) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	if err := a.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep archives the previous calendar month if its object is not already
// present. The cutoff is the first instant of the current month, so only
// markets fully settled in a closed month are snapshotted.
func (a *Archiver) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	month := cutoff.AddDate(0, -1, 0)

	path := archivePath(month)

	present, err := a.exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: check %s: %w", path, err)
	}
	if present {
		a.logger.Debug("archive already present", slog.String("path", path))
		return nil
	}

	count, err := a.ArchiveResolved(ctx, cutoff, path)
	if err != nil {
		return err
	}
	if count > 0 {
		a.logger.Info("archived settled markets",
			slog.String("path", path),
			slog.Int64("count", count))
	}
	return nil
}

// ArchiveResolved queries records whose resolution window closed before the
// cutoff, serializes them to JSONL, and uploads the result at path. Returns
// the number of archived records; zero records produce no object.
func (a *Archiver) ArchiveResolved(ctx context.Context, before time.Time, path string) (int64, error) {
	records, err := a.store.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	if int64(len(buf)) > multipartThreshold {
		err = a.client.UploadLarge(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	} else {
		err = a.client.Upload(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	return int64(len(records)), nil
}

// exists checks for an object via HeadObject, treating 404 responses from
// S3-compatible providers as absence.
func (a *Archiver) exists(ctx context.Context, path string) (bool, error) {
	_, err := a.client.S3().HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.client.Bucket()),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// archivePath builds the S3 key for a monthly archive file.
//
//	archive/markets/2025-01.jsonl
func archivePath(month time.Time) string {
	return fmt.Sprintf("archive/markets/%s.jsonl", month.Format("2006-01"))
}

// isNotFound reports whether the error indicates a missing S3 object.
// HeadObject does not return NoSuchKey; it returns a generic 404, which some
// providers only surface through the HTTP status code.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return true
	}

	return false
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
