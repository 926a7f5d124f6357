// Package metadata resolves market content hashes to their JSON documents
// via an IPFS HTTP gateway. Metadata is enrichment, not correctness: every
// failure path yields nil and a log line, never an error to the caller.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// maxBodySize caps gateway responses; market metadata documents are small.
const maxBodySize = 1 << 20

// Fetcher retrieves metadata documents from an IPFS gateway.
type Fetcher struct {
	gatewayURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given gateway base URL
// (e.g. "https://ipfs.io/ipfs"). timeout zero means 10 seconds.
func NewFetcher(gatewayURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "metadata")),
	}
}

// Fetch resolves a content hash to its metadata document. It returns nil on
// any network, HTTP, or parse failure; a record without a title or image is
// still a valid record.
func (f *Fetcher) Fetch(ctx context.Context, contentHash string) *domain.Metadata {
	if contentHash == "" {
		return nil
	}

	url := fmt.Sprintf("%s/%s", f.gatewayURL, contentHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Warn("metadata request build failed",
			slog.String("hash", contentHash),
			slog.String("error", err.Error()),
		)
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("metadata fetch failed",
			slog.String("hash", contentHash),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("metadata gateway returned non-200",
			slog.String("hash", contentHash),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		f.logger.Warn("metadata body read failed",
			slog.String("hash", contentHash),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var md domain.Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		f.logger.Warn("metadata parse failed",
			slog.String("hash", contentHash),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &md
}
