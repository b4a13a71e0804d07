package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/response"
	"room-ffe-api/internal/util"
)

// removeDuplicateUUIDs removes duplicate UUIDs from a slice, keeping first occurrences
func removeDuplicateUUIDs(uuids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	result := make([]uuid.UUID, 0, len(uuids))

	for _, id := range uuids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}

	return result
}

// asAppError passes AppErrors through and wraps anything else as an internal error
func asAppError(err error, message string) *response.AppError {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return response.NewAppError(response.ErrCodeInternal, message, err.Error())
}

// publishActivity sends an activity event after commit. Failures are logged only.
func publishActivity(ctx context.Context, activity client.ActivityClient, logger *zap.Logger, events ...client.ActivityEvent) {
	if activity == nil || len(events) == 0 {
		return
	}

	if actorID, ok := util.UserIDFromContext(ctx); ok {
		for i := range events {
			if events[i].ActorID == nil {
				id := actorID
				events[i].ActorID = &id
			}
		}
	}

	if err := activity.PublishBatch(ctx, events); err != nil {
		logger.Warn("Failed to publish activity events",
			zap.String("type", string(events[0].Type)),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
