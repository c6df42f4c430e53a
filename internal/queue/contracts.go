package queue

import (
	"context"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
)

// Producer publishes dispatch hints when report jobs are submitted.
type Producer interface {
	Enqueue(ctx context.Context, message domain.DispatchMessage) error
}

// Consumer delivers dispatch hints to a handler. Delivery is at-least-once;
// handlers must tolerate duplicates (the store claim makes that safe).
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.DispatchMessage) error) error
}
