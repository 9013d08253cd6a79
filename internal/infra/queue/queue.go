// File: internal/infra/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ameeramer/personal-coacher/internal/config"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
)

const TaskTypeProcessJob = "job:process"

// TaskPayload is the wire shape carried through the queue. Only the job id
// travels; the worker re-reads everything else from the record store.
type TaskPayload struct {
	JobID string `json:"jobId"`
}

var _ adapter.JobQueue = (*AsynqQueue)(nil)

// AsynqQueue publishes processing triggers onto the durable redis-backed
// queue. The asynq task id is pinned to the job id so a double publish of the
// same job collapses at the broker.
type AsynqQueue struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewAsynqQueue(cfg *config.Config) *AsynqQueue {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &AsynqQueue{
		client:   client,
		queue:    cfg.Queue.Name,
		maxRetry: cfg.Queue.MaxRetry,
	}
}

func (q *AsynqQueue) Dispatch(ctx context.Context, jobID string) (string, error) {
	b, err := json.Marshal(TaskPayload{JobID: jobID})
	if err != nil {
		return "", err
	}
	task := asynq.NewTask(TaskTypeProcessJob, b)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.TaskID(jobID),
		asynq.MaxRetry(q.maxRetry),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return info.ID, nil
}

func (q *AsynqQueue) Close() error { return q.client.Close() }

// NewServer builds the consumer side with concurrency and log level mapped
// from config. Callers register handlers on a mux and call Run.
func NewServer(cfg *config.Config) *asynq.Server {
	level := asynq.InfoLevel
	switch cfg.Log.Level {
	case "trace", "debug":
		level = asynq.DebugLevel
	case "warn":
		level = asynq.WarnLevel
	case "error":
		level = asynq.ErrorLevel
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				cfg.Queue.Name: 10,
			},
			LogLevel: level,
		},
	)
}
