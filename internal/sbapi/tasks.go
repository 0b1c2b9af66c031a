package sbapi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/flo-mic/osbctl/internal/api"
)

// WaitForTask polls an activation task until it leaves the running state or ctx is done.
func (c *Client) WaitForTask(ctx context.Context, id string, poll time.Duration) error {
	for {
		status, err := c.taskStatus(ctx, id)
		if err != nil {
			return err
		}
		switch status.Status {
		case api.TaskCompleted:
			return nil
		case api.TaskFailed:
			return fmt.Errorf("task %s failed: %s", id, status.Message)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (c *Client) taskStatus(ctx context.Context, id string) (*api.TaskStatus, error) {
	var status api.TaskStatus
	if err := c.get(ctx, "/tasks/"+url.PathEscape(id), &status); err != nil {
		return nil, err
	}
	return &status, nil
}
