package service

import (
	"context"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
	"github.com/nextphaseit/portal-gateway/internal/ports"
)

// NopAuditRecorder discards events. It is used when the audit database is disabled.
type NopAuditRecorder struct{}

var _ ports.AuditRecorder = NopAuditRecorder{}

func (NopAuditRecorder) Record(context.Context, domainauth.Event) error { return nil }
