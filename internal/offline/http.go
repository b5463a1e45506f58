package offline

import (
	"context"
	"fmt"

	"github.com/seatsync/seatsync/client"
	"github.com/seatsync/seatsync/internal/models"
)

// HTTPExecutor replays actions through the booking API client. The action
// ID travels as the Idempotency-Key so a replay interrupted after the
// server applied it is not applied twice.
type HTTPExecutor struct {
	Client *client.Client
}

// Execute implements Executor.
func (e HTTPExecutor) Execute(ctx context.Context, action models.QueuedAction) error {
	resp, err := e.Client.Replay(ctx, action.Method, action.URL, action.Payload, action.ID)
	if err != nil {
		if client.IsConflict(err) {
			return fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
		if !client.IsRetryable(err) {
			return err
		}
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", models.ErrTransport, resp.StatusCode)
	}
	return nil
}
