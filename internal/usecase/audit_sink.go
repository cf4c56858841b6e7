package usecase

import (
	"context"
	"sync"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"

	"go.uber.org/zap"
)

const auditWriteTimeout = 5 * time.Second

// RepositoryAuditSink writes audit events to the audit repository from a
// background goroutine. Failures are logged and dropped.
type RepositoryAuditSink struct {
	repo repository.AuditRepository
	log  *zap.Logger
	wg   sync.WaitGroup
}

func NewAuditSink(repo repository.AuditRepository, log *zap.Logger) *RepositoryAuditSink {
	return &RepositoryAuditSink{
		repo: repo,
		log:  log.With(zap.String("component", "audit")),
	}
}

func (s *RepositoryAuditSink) Record(ctx context.Context, event *entity.AuditLog) {
	if event == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Audit write panicked", zap.Any("panic", r))
			}
		}()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
		defer cancel()

		if err := s.repo.Create(writeCtx, event); err != nil {
			s.log.Warn("Failed to record audit event",
				zap.Error(err),
				zap.String("action", string(event.Action)),
			)
		}
	}()
}

// Flush waits for pending writes or until ctx is done.
func (s *RepositoryAuditSink) Flush(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Audit flush timed out")
	}
}
