package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/fluxgrid/model/job"
	"github.com/viant/fluxgrid/service/dao"
	jobdao "github.com/viant/fluxgrid/service/dao/job"
	"github.com/viant/fluxgrid/service/dao/job/memory"
)

// Service is the in-memory registry mirrored to storage: every change is
// written as <client>.json under the base URL. Reads are served from
// memory only; a mirror is never loaded back because the worker pool does
// not survive a restart.
//
// Save writes the mirror first, so a failed write leaves the previous entry
// in place. Cancel and Mutate commit in memory first; their mirror errors
// report a stale mirror, not a failed change.
type Service struct {
	*memory.Service
	baseURL string
	fs      afs.Service
	logger  logrus.FieldLogger
	mu      sync.Mutex
}

var _ jobdao.Service = (*Service)(nil)

// Save writes the mirror, then stores the job.
func (s *Service) Save(ctx context.Context, j *job.Job) error {
	if j == nil {
		return dao.ErrNilEntity
	}
	if j.ClientID == "" {
		return fmt.Errorf("job: %w", dao.ErrInvalidID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(ctx, j); err != nil {
		return err
	}
	return s.Service.Save(ctx, j)
}

// Delete removes the job and its mirror.
func (s *Service) Delete(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Service.Delete(ctx, clientID); err != nil {
		return err
	}
	if err := s.fs.Delete(ctx, s.jobURL(clientID)); err != nil {
		return fmt.Errorf("failed to delete job mirror %v: %w", clientID, err)
	}
	return nil
}

// Cancel clears the client's task list and rewrites its mirror.
func (s *Service) Cancel(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Service.Cancel(ctx, clientID); err != nil {
		return err
	}
	return s.write(ctx, job.New(clientID, nil))
}

// Mutate applies fn to every job and rewrites the mirrors of the jobs it
// changed.
func (s *Service) Mutate(ctx context.Context, fn func(j *job.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []*job.Job
	err := s.Service.Mutate(ctx, func(j *job.Job) {
		before, _ := json.Marshal(j)
		fn(j)
		if after, _ := json.Marshal(j); !bytes.Equal(before, after) {
			changed = append(changed, j.Clone())
		}
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, j := range changed {
		errs = append(errs, s.write(ctx, j))
	}
	return errors.Join(errs...)
}

func (s *Service) write(ctx context.Context, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job %v: %w", j.ClientID, err)
	}
	URL := s.jobURL(j.ClientID)
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write job mirror %v: %w", URL, err)
	}
	s.logger.WithFields(logrus.Fields{"client": j.ClientID, "tasks": len(j.Tasks)}).Debug("job mirrored")
	return nil
}

func (s *Service) jobURL(clientID string) string {
	return url.Join(s.baseURL, clientID+".json")
}

// Option configures the mirror.
type Option func(s *Service)

// WithFS sets the storage service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a mirrored registry writing under baseURL, creating the
// location when missing.
func New(ctx context.Context, baseURL string, opts ...Option) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("registry mirror URL cannot be empty")
	}
	ret := &Service{
		Service: memory.New(),
		baseURL: url.Normalize(baseURL, file.Scheme),
		fs:      afs.New(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	exists, err := ret.fs.Exists(ctx, ret.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check registry mirror %v: %w", ret.baseURL, err)
	}
	if !exists {
		if err = ret.fs.Create(ctx, ret.baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create registry mirror %v: %w", ret.baseURL, err)
		}
	}
	return ret, nil
}

