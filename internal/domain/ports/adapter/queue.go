package adapter

import "context"

// JobQueue is the durable hand-off between the enqueuer and the worker.
// Dispatch publishes a processing trigger for jobID and returns the queue's
// own delivery id. Delivery is at-least-once; the processor's claim step
// absorbs duplicates.
type JobQueue interface {
	Dispatch(ctx context.Context, jobID string) (queueMessageID string, err error)
}
