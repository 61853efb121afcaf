package tracker

import "context"

// StatusSyncPolicy is invoked after an application status change has been
// persisted, so hosts can propagate the new status to an upstream system of
// record. Errors are logged and do not roll back the change.
type StatusSyncPolicy interface {
	SyncStatus(ctx context.Context, applicationID, oldStatus, newStatus string) error
}

// NoopStatusSync is the default policy: status changes stay local.
type NoopStatusSync struct{}

// SyncStatus implements StatusSyncPolicy.
func (NoopStatusSync) SyncStatus(context.Context, string, string, string) error { return nil }
