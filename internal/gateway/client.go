// Package gateway is the narrow HTTP client that forwards extracted sender
// attribution to the CRM ingestion API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vschool/agentsync/internal/models"
	"go.uber.org/zap"
)

const senderEndpoint = "/api/marketing/chat/message-sender"

// Result is the ingestion API's per-call outcome. A non-2xx status or a
// malformed body both collapse to Success=false; the caller only needs to
// know whether the thread may be marked synced.
type Result struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

type submitRequest struct {
	ConversationID string               `json:"conversationId"`
	Senders        []models.SenderTuple `json:"senders"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// SubmitSenders delivers one conversation's sender tuples. Transport errors
// are returned to the caller (the thread stays retryable); application-level
// rejection comes back as Result{Success: false} with a nil error.
func (c *Client) SubmitSenders(ctx context.Context, conversationID string, senders []models.SenderTuple) (Result, error) {
	body, err := json.Marshal(submitRequest{ConversationID: conversationID, Senders: senders})
	if err != nil {
		return Result{}, fmt.Errorf("error encoding sender payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+senderEndpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("error calling ingestion API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("error reading ingestion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Ingestion API rejected delivery",
			zap.Int("status", resp.StatusCode),
			zap.String("conversation_id", conversationID))
		return Result{Success: false}, nil
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("Ingestion API returned malformed JSON",
			zap.Error(err),
			zap.String("conversation_id", conversationID))
		return Result{Success: false}, nil
	}
	return result, nil
}
