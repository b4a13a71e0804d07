package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"room-ffe-api/internal/metrics"
)

// ActivityType represents the type of activity event
type ActivityType string

const (
	ActivityFFEInstanceCreated    ActivityType = "FFE_INSTANCE_CREATED"
	ActivityFFEItemUpdated        ActivityType = "FFE_ITEM_UPDATED"
	ActivityStageUpdated          ActivityType = "STAGE_UPDATED"
	ActivityStageDuplicatesMerged ActivityType = "STAGE_DUPLICATES_MERGED"
	ActivityStageMergeConflict    ActivityType = "STAGE_MERGE_CONFLICT"
	ActivityRoomCreated           ActivityType = "ROOM_CREATED"
)

// ActivityEvent is one entry for the project activity log
type ActivityEvent struct {
	Type           ActivityType           `json:"type"`
	ActorID        *uuid.UUID             `json:"actorId,omitempty"`
	OrganizationID uuid.UUID              `json:"organizationId"`
	RoomID         uuid.UUID              `json:"roomId"`
	ResourceType   string                 `json:"resourceType"`
	ResourceID     uuid.UUID              `json:"resourceId"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt     string                 `json:"occurredAt,omitempty"`
}

// ActivityClient defines the interface for activity service communication.
// Delivery is best-effort: transport failures are logged and never returned.
type ActivityClient interface {
	Publish(ctx context.Context, event ActivityEvent) error
	PublishBatch(ctx context.Context, events []ActivityEvent) error
}

type activityClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewActivityClient creates a new activity API client
func NewActivityClient(baseURL string, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) ActivityClient {
	return &activityClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

// Publish sends a single activity event
func (c *activityClient) Publish(ctx context.Context, event ActivityEvent) error {
	return c.PublishBatch(ctx, []ActivityEvent{event})
}

// PublishBatch sends events in one request
func (c *activityClient) PublishBatch(ctx context.Context, events []ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/api/internal/activities", c.baseURL)

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range events {
		if events[i].OccurredAt == "" {
			events[i].OccurredAt = now
		}
	}

	jsonBody, err := json.Marshal(map[string]interface{}{"activities": events})
	if err != nil {
		c.logger.Error("Failed to marshal activity events",
			zap.Error(err),
			zap.Int("count", len(events)),
		)
		return fmt.Errorf("failed to marshal activities: %w", err)
	}

	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		c.logger.Error("Failed to create activity request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	if c.metrics != nil {
		c.metrics.RecordExternalAPICall("/api/internal/activities", http.MethodPost, statusCode, duration, err)
	}

	if err != nil {
		c.logger.Warn("Failed to publish activity events",
			zap.Error(err),
			zap.Int("count", len(events)),
			zap.Duration("duration", duration),
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("Activity events published",
			zap.Int("count", len(events)),
			zap.String("type", string(events[0].Type)),
			zap.Duration("duration", duration),
		)
		return nil
	}

	c.logger.Warn("Activity service returned non-success status",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("count", len(events)),
		zap.Duration("duration", duration),
	)
	return nil
}

// NoOpActivityClient is used when no activity service is configured
type NoOpActivityClient struct{}

func NewNoOpActivityClient() ActivityClient {
	return &NoOpActivityClient{}
}

func (c *NoOpActivityClient) Publish(ctx context.Context, event ActivityEvent) error {
	return nil
}

func (c *NoOpActivityClient) PublishBatch(ctx context.Context, events []ActivityEvent) error {
	return nil
}
