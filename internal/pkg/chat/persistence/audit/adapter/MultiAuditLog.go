package adapter

import (
	"context"
	"errors"

	"go-mentorchat/internal/pkg/chat/application/port"
)

// MultiAuditLog records to every sink and joins their errors.
type MultiAuditLog []port.AuditLog

var _ port.AuditLog = MultiAuditLog(nil)

func (m MultiAuditLog) Record(ctx context.Context, e port.AuditEntry) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
