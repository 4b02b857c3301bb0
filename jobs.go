package reach

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anatolykoptev/go-reach/kv"
)

const jobKeyPrefix = "job:"

// JobStore persists Job records as JSON, one key per job. Each record is
// rewritten whole, so readers never see a status without its results.
type JobStore struct {
	store kv.Store
	now   func() time.Time
}

// NewJobStore returns a JobStore over store.
func NewJobStore(store kv.Store) *JobStore {
	return &JobStore{store: store, now: time.Now}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Create writes a new job record.
func (s *JobStore) Create(ctx context.Context, job *Job) error {
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	return s.put(ctx, "create", job)
}

// Save overwrites the job record.
func (s *JobStore) Save(ctx context.Context, job *Job) error {
	job.UpdatedAt = s.now()
	return s.put(ctx, "save", job)
}

// Get loads a job. Unknown ids return ErrJobNotFound.
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	key := jobKey(id)
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, ErrJobNotFound
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, &StoreError{Op: "decode", Key: key, Err: err}
	}
	return &job, nil
}

// UpdateProgress rewrites only the progress text of a job.
func (s *JobStore) UpdateProgress(ctx context.Context, id, progress string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	job.Progress = progress
	return s.Save(ctx, job)
}

func (s *JobStore) put(ctx context.Context, op string, job *Job) error {
	key := jobKey(job.ID)
	data, err := json.Marshal(job)
	if err != nil {
		return &StoreError{Op: op, Key: key, Err: err}
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return &StoreError{Op: op, Key: key, Err: err}
	}
	return nil
}
