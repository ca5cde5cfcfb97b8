package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/events"
	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tune how pushes to the remote are retried.
type Options struct {
	// PushTimeout bounds a single push including retries.
	PushTimeout     time.Duration
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	// OnPushed, when set, is called after every successful push with the
	// new remote version and the number of jobs pushed.
	OnPushed func(version string, count int)
}

func (o *Options) defaults() {
	if o.PushTimeout == 0 {
		o.PushTimeout = 30 * time.Second
	}
	if o.InitialInterval == 0 {
		o.InitialInterval = 200 * time.Millisecond
	}
	if o.MaxElapsedTime == 0 {
		o.MaxElapsedTime = 15 * time.Second
	}
}

// rebaseFunc re-applies a local mutation to a fresher remote collection.
type rebaseFunc func(jobs []models.Job) ([]models.Job, error)

// Synchronizer is a read-through, write-through accelerator in front of a
// Remote. Writes land in the cache first and are pushed asynchronously; a
// failed push is logged and never rolls the cache back.
type Synchronizer struct {
	cache  Cache
	remote Remote
	opts   Options
	logger *zap.Logger

	mu sync.Mutex
	// tail is closed when the most recently queued push has finished.
	tail chan struct{}
	// successors maps a remote version to the version our own push replaced it
	// with, so queued writes based on the old version are not seen as stale.
	successors map[string]string
}

func NewSynchronizer(cache Cache, remote Remote, opts Options, logger *zap.Logger) *Synchronizer {
	opts.defaults()
	return &Synchronizer{
		cache:      cache,
		remote:     remote,
		opts:       opts,
		logger:     logger.Named("synchronizer"),
		successors: make(map[string]string),
	}
}

// Jobs returns the cached collection, pulling it from the remote first when
// the cache is empty. A degraded remote collection is returned but not
// cached, so the next read asks the remote again.
func (s *Synchronizer) Jobs(ctx context.Context) (models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Get returns one job. A job missing from the cache triggers exactly one
// refresh from the remote before ErrNotFound is reported. A job missing from
// a degraded collection is ErrStorageUnavailable instead.
func (s *Synchronizer) Get(ctx context.Context, id string) (models.Job, error) {
	col, err := s.Jobs(ctx)
	if err != nil {
		return models.Job{}, err
	}
	if i := models.FindJob(col.Jobs, id); i >= 0 {
		return col.Jobs[i], nil
	}

	col, err = s.Refresh(ctx)
	if err != nil {
		return models.Job{}, err
	}
	if i := models.FindJob(col.Jobs, id); i >= 0 {
		return col.Jobs[i], nil
	}
	if col.Degraded {
		return models.Job{}, fmt.Errorf("%w: job %s: collection store is degraded", e.ErrStorageUnavailable, id)
	}
	return models.Job{}, fmt.Errorf("%w: job %s", e.ErrNotFound, id)
}

// UpsertCandidate adds the candidate to the job or replaces the one with the
// same ID. A candidate without ID gets a fresh one.
func (s *Synchronizer) UpsertCandidate(ctx context.Context, jobID string, c models.Candidate) (models.Candidate, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.DateAdded.IsZero() {
		c.DateAdded = time.Now().UTC()
	}
	normalizeCandidate(&c)

	_, err := s.mutateJob(ctx, jobID, func(job *models.Job) error {
		job.UpsertCandidate(c)
		return nil
	})
	if err != nil {
		return models.Candidate{}, err
	}
	return c, nil
}

// UpdateCandidate applies fn to an existing candidate of the job. On a remote
// conflict fn is replayed against the remote copy of the candidate.
func (s *Synchronizer) UpdateCandidate(ctx context.Context, jobID, candidateID string, fn func(*models.Candidate)) (models.Candidate, error) {
	job, err := s.mutateJob(ctx, jobID, func(job *models.Job) error {
		i := job.FindCandidate(candidateID)
		if i < 0 {
			return fmt.Errorf("%w: candidate %s in job %s", e.ErrNotFound, candidateID, jobID)
		}
		normalizeCandidate(&job.Candidates[i])
		fn(&job.Candidates[i])
		return nil
	})
	if err != nil {
		return models.Candidate{}, err
	}
	return job.Candidates[job.FindCandidate(candidateID)], nil
}

// ReplaceAll overwrites the cached collection and pushes it as a whole. A
// remote that moved on in the meantime rejects the push; it is not rebased.
func (s *Synchronizer) ReplaceAll(ctx context.Context, jobs []models.Job) error {
	if err := models.ValidateJobs(jobs); err != nil {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	jobs, err := models.CloneJobs(jobs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := ""
	if col, ok, err := s.cache.Load(ctx); err == nil && ok {
		base = col.Version
	}
	if err := s.cache.Store(ctx, models.Collection{Jobs: jobs, Version: base}); err != nil {
		return fmt.Errorf("failed to update cache: %w", err)
	}
	s.pushLocked("replace_all", jobs, base, nil)
	return nil
}

// Refresh waits for queued pushes, then replaces the cache with the remote
// collection.
func (s *Synchronizer) Refresh(ctx context.Context) (models.Collection, error) {
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// Invalidate drops the cache so the next read pulls from the remote.
func (s *Synchronizer) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successors = make(map[string]string)
	return s.cache.Clear(ctx)
}

// Wait blocks until every push queued so far has finished.
func (s *Synchronizer) Wait() {
	s.mu.Lock()
	tail := s.tail
	s.mu.Unlock()
	if tail != nil {
		<-tail
	}
}

// HandleEvent drops the cache when another instance saved a collection
// version this cache has not seen.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev events.Event) error {
	if ev.Type != events.JobsSaved {
		return nil
	}

	s.mu.Lock()
	col, ok, err := s.cache.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if ok && col.Version == ev.Version {
		return nil
	}

	s.logger.Info("Remote collection changed, dropping cache",
		zap.String("version", ev.Version),
		zap.String("source", ev.Source),
	)
	return s.Invalidate(ctx)
}

func (s *Synchronizer) loadLocked(ctx context.Context) (models.Collection, error) {
	col, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("Cache read failed, reloading from remote", zap.Error(err))
	}
	if err == nil && ok {
		return col, nil
	}
	return s.refreshLocked(ctx)
}

func (s *Synchronizer) refreshLocked(ctx context.Context) (models.Collection, error) {
	col, err := s.remote.Load(ctx)
	if err != nil {
		return models.Collection{}, fmt.Errorf("failed to load remote collection: %w", err)
	}
	if col.Jobs == nil {
		col.Jobs = []models.Job{}
	}
	if col.Degraded {
		s.logger.Warn("Remote served a degraded collection, not caching it",
			zap.Int("jobs", len(col.Jobs)),
			zap.String("version", col.Version),
		)
		return col, nil
	}
	if err := s.cache.Store(ctx, col); err != nil {
		s.logger.Warn("Failed to populate cache", zap.Error(err))
	}
	s.successors = make(map[string]string)
	return col, nil
}

// mutateJob applies fn to the cached job and queues a push that replays fn
// against the remote copy when the remote moved on. It returns a copy of the
// mutated job.
func (s *Synchronizer) mutateJob(ctx context.Context, jobID string, fn func(*models.Job) error) (models.Job, error) {
	// resolves the one-refresh lookup before taking the lock
	if _, err := s.Get(ctx, jobID); err != nil {
		return models.Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.loadLocked(ctx)
	if err != nil {
		return models.Job{}, err
	}
	if col.Degraded {
		return models.Job{}, fmt.Errorf("%w: collection store is degraded", e.ErrStorageUnavailable)
	}
	i := models.FindJob(col.Jobs, jobID)
	if i < 0 {
		return models.Job{}, fmt.Errorf("%w: job %s", e.ErrNotFound, jobID)
	}
	if err := fn(&col.Jobs[i]); err != nil {
		return models.Job{}, err
	}
	if err := s.cache.Store(ctx, col); err != nil {
		return models.Job{}, fmt.Errorf("failed to update cache: %w", err)
	}
	mutated, err := models.CloneJobs(col.Jobs[i : i+1])
	if err != nil {
		return models.Job{}, err
	}

	rebase := func(jobs []models.Job) ([]models.Job, error) {
		i := models.FindJob(jobs, jobID)
		if i < 0 {
			return nil, fmt.Errorf("%w: job %s removed remotely", e.ErrNotFound, jobID)
		}
		if err := fn(&jobs[i]); err != nil {
			return nil, err
		}
		return jobs, nil
	}
	s.pushLocked("upsert", col.Jobs, col.Version, rebase)
	return mutated[0], nil
}

// pushLocked queues an asynchronous push. Pushes run one at a time in the
// order they were queued.
func (s *Synchronizer) pushLocked(op string, jobs []models.Job, base string, rebase rebaseFunc) {
	prev := s.tail
	done := make(chan struct{})
	s.tail = done

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		s.push(op, jobs, base, rebase)
	}()
}

func (s *Synchronizer) push(op string, jobs []models.Job, base string, rebase rebaseFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PushTimeout)
	defer cancel()

	base = s.latest(base)
	start := time.Now()
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxElapsedTime = s.opts.MaxElapsedTime

	operation := func() error {
		attempts++
		version, err := s.remote.Save(ctx, jobs, base)
		if err == nil {
			s.markPushed(ctx, base, version)
			if s.opts.OnPushed != nil {
				s.opts.OnPushed(version, len(jobs))
			}
			return nil
		}

		switch {
		case errors.Is(err, e.ErrVersionConflict):
			if rebase == nil {
				return backoff.Permanent(err)
			}
			col, loadErr := s.remote.Load(ctx)
			if loadErr != nil {
				return loadErr
			}
			rebased, rebaseErr := rebase(col.Jobs)
			if rebaseErr != nil {
				return backoff.Permanent(rebaseErr)
			}
			s.logger.Info("Remote collection moved on, replaying write",
				zap.String("op", op),
				zap.String("remote_version", col.Version),
			)
			jobs, base = rebased, col.Version
			return err
		case errors.Is(err, e.ErrInvalidInput), errors.Is(err, e.ErrReadOnly), errors.Is(err, e.ErrMisconfigured):
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		s.logger.Error("Push failed, keeping local copy",
			zap.String("op", op),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Push finished",
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Int("jobs", len(jobs)),
	)
}

// latest follows the versions produced by our own earlier pushes.
func (s *Synchronizer) latest(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for seen := 0; seen < len(s.successors); seen++ {
		next, ok := s.successors[base]
		if !ok {
			break
		}
		base = next
	}
	return base
}

// markPushed records the new remote version and advances the cache to it
// when the cache is still based on the replaced version.
func (s *Synchronizer) markPushed(ctx context.Context, base, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if base != "" && base != version {
		s.successors[base] = version
	}
	col, ok, err := s.cache.Load(ctx)
	if err != nil || !ok {
		return
	}
	if col.Version == base || col.Version == "" {
		col.Version = version
		if err := s.cache.Store(ctx, col); err != nil {
			s.logger.Warn("Failed to record pushed version", zap.Error(err))
		}
	}
}

func normalizeCandidate(c *models.Candidate) {
	if c.Scores == nil {
		c.Scores = map[string]int{}
	}
	if c.AIScores == nil {
		c.AIScores = map[string]int{}
	}
	if c.Explanations == nil {
		c.Explanations = map[string]string{}
	}
	if c.Interviews == nil {
		c.Interviews = []models.Interview{}
	}
}
