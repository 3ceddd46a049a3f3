// Package queue defines the asynq task types shared by the API and worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// OwnerEmailTask delivers the uploaded documents to the administrator.
	OwnerEmailTask = "email:owner"
	// ReceiptEmailTask confirms receipt to the client.
	ReceiptEmailTask = "email:receipt"
	// LogSubmissionTask records the submission in the CSV log and the
	// spreadsheet webhook.
	LogSubmissionTask = "log:submission"
	// StatusEmailTask tells the client their submission moved to a new
	// stage. Enqueued after a successful admin status write.
	StatusEmailTask = "email:status"
)

// SubmissionPayload identifies a submission; workers reload the row rather
// than trusting a stale copy in the task body.
type SubmissionPayload struct {
	Ref string `json:"ref"`
}

// StatusPayload carries a status change notification.
type StatusPayload struct {
	Ref   string `json:"ref"`
	Stage string `json:"stage"`
	Note  string `json:"note,omitempty"`
}

// EnqueueSubmission enqueues one of the submission-scoped tasks.
func EnqueueSubmission(ctx context.Context, client *asynq.Client, taskType, ref string) error {
	data, err := json.Marshal(SubmissionPayload{Ref: ref})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// EnqueueStatusEmail enqueues the stage-change notification.
func EnqueueStatusEmail(ctx context.Context, client *asynq.Client, payload StatusPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(StatusEmailTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue %s: %w", StatusEmailTask, err)
	}
	return nil
}
