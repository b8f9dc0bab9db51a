package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FailedReportStream holds reports that were accepted but could not be
// persisted. The core never retries these; the agent's next cycle is the
// retry mechanism. Entries exist for inspection only.
const FailedReportStream = "hostpulse:reports:dlq"

// QueueFailedReport captures a report that failed at a persistence stage.
func (c *Client) QueueFailedReport(ctx context.Context, hostID uuid.UUID, stage string, payload []byte) error {
	fields := map[string]string{
		"host_id":   hostID.String(),
		"stage":     stage,
		"payload":   string(payload),
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := c.XAdd(ctx, FailedReportStream, fields); err != nil {
		return fmt.Errorf("failed to queue report to DLQ: %w", err)
	}
	return nil
}

// FailedReports returns up to count entries from the dead letter stream.
func (c *Client) FailedReports(ctx context.Context, count int64) ([]StreamMessage, error) {
	return c.XRange(ctx, FailedReportStream, count)
}
