package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/storage"
)

// FailedBlob - blob, который не удалось удалить
type FailedBlob struct {
	AttachmentID string
	BlobRef      string
	Err          error
}

// DeleteReport - итог удаления элементов вместе с их вложениями
type DeleteReport struct {
	Failed          []FailedBlob
	DeletedElements int
	DeletedBlobs    int
}

// Err is ErrPartialFailure when at least one blob survived
func (r *DeleteReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d attachment blob(s) not removed", common.ErrPartialFailure, len(r.Failed))
}

func (r *DeleteReport) merge(other *DeleteReport) {
	r.Failed = append(r.Failed, other.Failed...)
	r.DeletedElements += other.DeletedElements
	r.DeletedBlobs += other.DeletedBlobs
}

// blobReaper удаляет blob'ы элементов до удаления строк из БД.
// Строки удаляются в любом случае, сбои попадают в отчет.
type blobReaper struct {
	blobs     storage.BlobStorage
	publisher events.Publisher
	logger    *slog.Logger
}

// reap deletes every attachment blob of element. A blob that is already
// gone counts as deleted.
func (b *blobReaper) reap(ctx context.Context, element *models.Element) *DeleteReport {
	report := &DeleteReport{}

	for _, a := range element.Attachments {
		err := b.blobs.Delete(ctx, a.BlobRef)
		if err == nil || errors.Is(err, storage.ErrBlobNotFound) {
			report.DeletedBlobs++
			continue
		}

		b.logger.WarnContext(ctx, "Failed to delete attachment blob",
			slog.String("element_id", element.ID),
			slog.String("attachment_id", a.ID),
			slog.Any("error", err))
		report.Failed = append(report.Failed, FailedBlob{AttachmentID: a.ID, BlobRef: a.BlobRef, Err: err})
	}

	return report
}

// deleted publishes element.deleted; failures are only logged
func (b *blobReaper) deleted(ctx context.Context, element *models.Element, actorID string) {
	publish(ctx, b.publisher, b.logger, events.Event{
		Subject:   events.SubjectElementDeleted,
		VaultID:   element.VaultID,
		ElementID: element.ID,
		ActorID:   actorID,
	})
}

func publish(ctx context.Context, p events.Publisher, logger *slog.Logger, event events.Event) {
	if err := p.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			slog.String("subject", event.Subject),
			slog.Any("error", err))
	}
}
