// Package transfer speaks the two-phase upload protocol: a JSON slot request
// to the coordinator followed by a raw PUT to the presigned URL.
// It keeps no state between calls and never retries.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyslice/studyslice/internal/logging"
)

const (
	// SlotPath is the coordinator endpoint that issues slots.
	SlotPath = "/upload"

	// RequestIDHeader correlates client calls with coordinator logs.
	RequestIDHeader = "X-Request-ID"

	defaultSlotTimeout = 60 * time.Second
	maxErrorBody       = 4096
)

// Client performs the slot request and the payload transfer.
type Client struct {
	baseURL     string
	slotTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a client for the coordinator at baseURL. A zero
// slotTimeout selects the default. The payload PUT is bounded only by the
// caller's context since large files take arbitrarily long.
func NewClient(baseURL string, slotTimeout time.Duration, logger *slog.Logger) *Client {
	if slotTimeout <= 0 {
		slotTimeout = defaultSlotTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		slotTimeout: slotTimeout,
		httpClient:  &http.Client{},
		logger:      logging.WithComponent(logger, "transfer"),
	}
}

// RequestSlot asks the coordinator for a presigned write URL for fileName.
func (c *Client) RequestSlot(ctx context.Context, fileName string) (*Slot, error) {
	body, err := json.Marshal(SlotRequest{Filename: fileName})
	if err != nil {
		return nil, fmt.Errorf("marshal slot request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.slotTimeout)
	defer cancel()

	url := c.baseURL + SlotPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	c.logger.Info("requesting upload slot", "url", url, "filename", fileName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "slot request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: "slot request", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var slot Slot
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSlot, err)
	}
	if slot.PresignedURL == "" {
		return nil, ErrMissingWriteURL
	}

	c.logger.Info("upload slot granted",
		"bucket", slot.Bucket,
		"key", slot.Key,
		"expires_in", slot.ExpiresIn,
		"presigned_url", logging.SanitizeURL(slot.PresignedURL),
	)
	return &slot, nil
}

// PutPayload writes size bytes from body to the slot's presigned URL.
func (c *Client) PutPayload(ctx context.Context, slot *Slot, body io.Reader, size int64) error {
	if slot == nil || slot.PresignedURL == "" {
		return ErrMissingWriteURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, slot.PresignedURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = size

	c.logger.Info("transferring payload",
		"url", logging.SanitizeURL(slot.PresignedURL),
		"size_bytes", size,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, "payload transfer", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: "payload transfer", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Info("payload transfer succeeded", "key", slot.Key, "status", resp.StatusCode)
	return nil
}

// transportError classifies a failed Do. A cancelled caller context is not
// an outage, so it is returned as-is instead of as ErrUnreachable.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
}
