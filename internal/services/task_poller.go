package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"treechat-backend/internal/gramps"
	"treechat-backend/internal/models"
	"treechat-backend/pkg/apierr"
)

// ErrTaskTimeout is returned when a background task does not reach a
// terminal state within the configured ceiling. It is distinct from task
// failure: "we gave up waiting" vs "the backend said no".
var ErrTaskTimeout = errors.New("task exceeded maximum wait time")

// TaskStatusFetcher fetches a task's raw decoded status by id.
type TaskStatusFetcher func(ctx context.Context, taskID string) (any, error)

// PollOptions configures the task polling loop.
type PollOptions struct {
	Interval time.Duration // sleep between status checks
	Deadline time.Duration // total wall-clock ceiling
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = 1500 * time.Millisecond
	}
	if o.Deadline <= 0 {
		o.Deadline = 10 * time.Minute
	}
	return o
}

// PollTask drives a background chat task to a terminal state. It issues one
// status request at a time, sleeping a fixed interval between checks, and
// gives up once the deadline elapses. The deadline is checked before each
// iteration, so actual wall time may overshoot by at most one interval plus
// one request latency. Cancelling ctx stops the loop promptly, including
// mid-sleep.
func PollTask(ctx context.Context, taskID string, fetch TaskStatusFetcher, opts PollOptions) (*models.ChatResult, error) {
	opts = opts.withDefaults()
	start := time.Now()

	for {
		if time.Since(start) > opts.Deadline {
			return nil, ErrTaskTimeout
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status, err := fetch(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("task status check failed: %w", err)
		}
		if apierr.HasErrorField(status) {
			return nil, errors.New(apierr.Resolve(status, "task status check failed"))
		}

		switch taskState(status) {
		case "SUCCESS":
			payload := taskResultPayload(status)
			response := truthyString(payload["response"])
			if response == "" {
				return nil, errors.New("task completed without a valid response payload")
			}
			return &models.ChatResult{
				Response:       response,
				ConversationID: coerceString(payload["conversation_id"]),
			}, nil
		case "FAILURE", "REVOKED":
			return nil, errors.New(taskFailureMessage(status))
		}

		// Pending or unrecognized: wait out the interval, but let
		// cancellation cut the sleep short.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// taskState reads the task state, tolerating the {"data": ...} envelope.
func taskState(status any) string {
	obj, _ := gramps.UnwrapData(status).(map[string]any)
	state, _ := obj["state"].(string)
	return state
}

// taskResultPayload normalizes the task result into one internal shape: a
// structured result_object wins, then a result field that may itself be a
// JSON-encoded string or an object. Anything else yields an empty payload.
func taskResultPayload(status any) map[string]any {
	obj, _ := gramps.UnwrapData(status).(map[string]any)

	if payload, ok := obj["result_object"].(map[string]any); ok {
		return payload
	}
	switch result := obj["result"].(type) {
	case map[string]any:
		return result
	case string:
		var payload map[string]any
		if err := json.Unmarshal([]byte(result), &payload); err == nil {
			return payload
		}
	}
	return nil
}

// taskFailureMessage builds the failure text for a FAILURE/REVOKED task:
// classified error first, then result, then info, then a generic default.
func taskFailureMessage(status any) string {
	if msg := apierr.Resolve(status, ""); msg != "" {
		return msg
	}
	obj, _ := gramps.UnwrapData(status).(map[string]any)
	if msg := apierr.Resolve(obj, ""); msg != "" {
		return msg
	}
	if msg := coerceString(obj["result"]); msg != "" {
		return msg
	}
	if msg := coerceString(obj["info"]); msg != "" {
		return msg
	}
	return "task failed"
}

// truthyString returns the string form of value only when it is truthy in
// the JSON sense (non-empty string, non-zero number, true). A false or zero
// response payload counts as missing.
func truthyString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v != 0 {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

// coerceString renders an arbitrary decoded JSON value as a string. Empty
// string for nil; structured values are re-encoded as JSON.
func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		if encoded, err := json.Marshal(v); err == nil {
			return string(encoded)
		}
		return fmt.Sprintf("%v", v)
	}
}
