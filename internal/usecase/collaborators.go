package usecase

import (
	"context"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/ratelimit"
	"member-onboarding/pkg/storage"
)

// EmailSender delivers a templated message carrying a token link.
type EmailSender interface {
	Send(ctx context.Context, recipient, template, token string) error
}

// FileStore keeps uploaded files. Delete of a missing path is not an error.
type FileStore interface {
	Store(ctx context.Context, upload storage.Upload) (string, error)
	Delete(ctx context.Context, path string) error
}

// AuditSink records events without blocking or failing the caller.
type AuditSink interface {
	Record(ctx context.Context, event *entity.AuditLog)
}

// Clock returns the current time. Services read time only through it.
type Clock func() time.Time

// Dependencies are the collaborators shared by the services.
type Dependencies struct {
	Mailer EmailSender
	Files  FileStore
	Limits ratelimit.Store
	Audit  AuditSink
	Now    Clock
}

func (d Dependencies) clock() Clock {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, *entity.AuditLog) {}

func (d Dependencies) audit() AuditSink {
	if d.Audit == nil {
		return noopAuditSink{}
	}
	return d.Audit
}
