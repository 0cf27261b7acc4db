package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyJobStatus = "js" // HASH. js:{job_id} field: value. Expires after the job ttl.
	KeyJobStates = "jc" // HASH. Counter of finished jobs per final state. HINCRBY jc {state} 1

	KeySeparator = ":"

	fieldID         = "id"
	fieldState      = "state"
	fieldDone       = "done"
	fieldTotal      = "total"
	fieldFiles      = "files"
	fieldFailures   = "failures"
	fieldStartedAt  = "started_at"
	fieldFinishedAt = "finished_at"
)

type jobRepository struct {
	cl  *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewJobRepository(cl *redis.Client, ttl time.Duration, log *slog.Logger) *jobRepository {
	return &jobRepository{
		cl:  cl,
		ttl: ttl,
		log: log.With(slog.String("item", "JobRepository")),
	}
}

// Save stores the status and, for a finished job, counts its final state.
func (r *jobRepository) Save(ctx context.Context, status *entity.JobStatus) error {
	key := getKey(KeyJobStatus, status.ID)

	pipe := r.cl.TxPipeline()
	pipe.HSet(ctx, key, toHash(status))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	if status.State != entity.JobStateRunning {
		pipe.HIncrBy(ctx, KeyJobStates, string(status.State), 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot save job %s status: %w", status.ID, err)
	}

	return nil
}

func (r *jobRepository) Get(ctx context.Context, id string) (*entity.JobStatus, error) {
	fields, err := r.cl.HGetAll(ctx, getKey(KeyJobStatus, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrJobStatusNotFound
		}

		return nil, fmt.Errorf("cannot get job %s status: %w", id, err)
	}

	if len(fields) < 1 {
		return nil, common.ErrJobStatusNotFound
	}

	return fromHash(fields)
}

func (r *jobRepository) Counters(ctx context.Context) (map[string]int64, error) {
	values, err := r.cl.HGetAll(ctx, KeyJobStates).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get job counters: %w", err)
	}

	counters := make(map[string]int64, len(values))
	for state, v := range values {
		c, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter value", slog.String("state", state), slog.Any("error", err))

			continue
		}

		counters[state] = c
	}

	return counters, nil
}

func toHash(s *entity.JobStatus) map[string]any {
	h := map[string]any{
		fieldID:        s.ID,
		fieldState:     string(s.State),
		fieldDone:      s.Done,
		fieldTotal:     s.Total,
		fieldFiles:     s.Files,
		fieldFailures:  s.Failures,
		fieldStartedAt: s.StartedAt.UTC().Format(time.RFC3339Nano),
	}

	if !s.FinishedAt.IsZero() {
		h[fieldFinishedAt] = s.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	return h
}

func fromHash(h map[string]string) (*entity.JobStatus, error) {
	s := &entity.JobStatus{
		ID:    h[fieldID],
		State: entity.JobState(h[fieldState]),
	}

	for field, dst := range map[string]*int{
		fieldDone:     &s.Done,
		fieldTotal:    &s.Total,
		fieldFiles:    &s.Files,
		fieldFailures: &s.Failures,
	} {
		v, err := strconv.Atoi(h[field])
		if err != nil {
			return nil, fmt.Errorf("cannot parse %s: %w", field, err)
		}

		*dst = v
	}

	for field, dst := range map[string]*time.Time{
		fieldStartedAt:  &s.StartedAt,
		fieldFinishedAt: &s.FinishedAt,
	} {
		v, exists := h[field]
		if !exists {
			continue
		}

		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %s: %w", field, err)
		}

		*dst = t
	}

	return s, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}

// memoryRepository keeps statuses in process when no redis is configured.
type memoryRepository struct {
	mu       sync.Mutex
	statuses map[string]entity.JobStatus
	counters map[string]int64
}

func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		statuses: make(map[string]entity.JobStatus),
		counters: make(map[string]int64),
	}
}

func (r *memoryRepository) Save(ctx context.Context, status *entity.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[status.ID] = *status
	if status.State != entity.JobStateRunning {
		r.counters[string(status.State)]++
	}

	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*entity.JobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, exists := r.statuses[id]
	if !exists {
		return nil, common.ErrJobStatusNotFound
	}

	return &status, nil
}

func (r *memoryRepository) Counters(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}

	return counters, nil
}
