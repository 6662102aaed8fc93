package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/apexcrm/leadflow/pkg/queue"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	statusQueued    = "queued"
	statusRunning   = "running"
	statusFailed    = "failed"
	statusCompleted = "completed"

	defaultPollInterval      = time.Second
	defaultVisibilityTimeout = 5 * time.Minute
)

// PostgresQueue is a durable at-least-once job queue backed by a jobs
// table. Consumers claim rows with FOR UPDATE SKIP LOCKED; rows stuck in
// `running` past the visibility timeout (consumer crash) are requeued,
// which is where redelivery comes from.
type PostgresQueue struct {
	db                *sqlx.DB
	pollInterval      time.Duration
	visibilityTimeout time.Duration
}

func NewPostgresQueue(connStr string) (*PostgresQueue, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresQueue{
		db:                db,
		pollInterval:      defaultPollInterval,
		visibilityTimeout: defaultVisibilityTimeout,
	}, nil
}

func (q *PostgresQueue) Enqueue(ctx context.Context, name string, payload interface{}, opts queue.Options) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal job payload")
	}
	keep := opts.KeepFailed
	if keep <= 0 {
		keep = queue.DefaultKeepFailed
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, payload, status, remove_on_complete, keep_failed) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), name, data, statusQueued, opts.RemoveOnComplete, keep)
	if err != nil {
		return errors.Wrapf(err, "enqueue job %q", name)
	}
	return nil
}

// Dequeue polls for the oldest queued job, claiming it atomically. Blocks
// until a job is available or ctx is done.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		job, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *PostgresQueue) claim(ctx context.Context) (*queue.Job, error) {
	if err := q.requeueStale(ctx); err != nil {
		return nil, err
	}
	var job queue.Job
	err := q.db.QueryRowxContext(ctx, `
		UPDATE jobs SET status = $1, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM jobs WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, attempts`,
		statusRunning, statusQueued).StructScan(&job)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "claim job")
	}
	return &job, nil
}

// requeueStale returns crashed consumers' jobs to the queue.
func (q *PostgresQueue) requeueStale(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE status = $2 AND updated_at < $3`,
		statusQueued, statusRunning, time.Now().Add(-q.visibilityTimeout))
	return err
}

func (q *PostgresQueue) Complete(ctx context.Context, job *queue.Job) error {
	var removeOnComplete bool
	if err := q.db.GetContext(ctx, &removeOnComplete, "SELECT remove_on_complete FROM jobs WHERE id = $1", job.ID); err != nil {
		return errors.Wrapf(err, "complete job %s", job.ID)
	}
	if removeOnComplete {
		_, err := q.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", job.ID)
		return err
	}
	_, err := q.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", statusCompleted, job.ID)
	return err
}

// Fail retains the job for inspection, pruning failed rows beyond the
// job's keep_failed bound (oldest first).
func (q *PostgresQueue) Fail(ctx context.Context, job *queue.Job, jobErr error) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3",
		statusFailed, jobErr.Error(), job.ID)
	if err != nil {
		return errors.Wrapf(err, "fail job %s", job.ID)
	}
	var keep int
	if err := q.db.GetContext(ctx, &keep, "SELECT keep_failed FROM jobs WHERE id = $1", job.ID); err != nil {
		return nil // job pruned concurrently; nothing to do
	}
	_, err = q.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status = $1 AND id NOT IN (
			SELECT id FROM jobs WHERE status = $1 ORDER BY updated_at DESC LIMIT $2
		)`, statusFailed, keep)
	return err
}

func (q *PostgresQueue) Close() error {
	return q.db.Close()
}
