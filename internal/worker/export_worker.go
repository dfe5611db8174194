package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tempo/internal/amqp"
	"tempo/internal/core"
	"tempo/internal/sheets"
	"tempo/internal/storage"
)

// ExportSource is the storage side of the export pipeline.
type ExportSource interface {
	GetSectionForExport(ctx context.Context, id string) (storage.PendingExport, error)
	GetPendingExports(ctx context.Context, limit int) ([]storage.PendingExport, error)
	MarkExported(ctx context.Context, id string, version int64) (bool, error)
	MarkExportError(ctx context.Context, id string) error
	ResetExportErrors(ctx context.Context) (int64, error)
}

var _ ExportSource = (*storage.SQLiteRepository)(nil)

// ExportWorker appends section changes to a spreadsheet. Change messages are
// the fast path; ProcessPending re-exports anything the messages missed.
type ExportWorker struct {
	source    ExportSource
	sheet     sheets.RowAppender
	batchSize int
	loc       *time.Location

	// serializes the message and reconcile paths so a row is exported once
	mu sync.Mutex
}

func NewExportWorker(source ExportSource, sheet sheets.RowAppender, batchSize int, loc *time.Location) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportWorker{
		source:    source,
		sheet:     sheet,
		batchSize: batchSize,
		loc:       loc,
	}
}

// HandleChangeMessage processes one change message from AMQP.
func (w *ExportWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Kind != amqp.KindSection {
		slog.DebugContext(ctx, "Ignoring non-section change", "kind", msg.Kind, "op", msg.Op, "id", msg.ID)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if msg.Op == amqp.OpDeleted {
		row := sheets.DeletedRow(msg.ID, msg.OwnerID, msg.Timestamp.In(w.loc))
		ref, err := w.sheet.AppendRows(ctx, []sheets.SectionRow{row})
		if err != nil {
			return fmt.Errorf("append delete row: %w", err)
		}
		slog.InfoContext(ctx, "Exported section deletion", "id", msg.ID, "sheets_ref", ref)
		return nil
	}

	rec, err := w.source.GetSectionForExport(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// deleted before we got here; the delete message follows
		slog.InfoContext(ctx, "Section no longer exists, skipping export", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get section for export: %w", err)
	}
	if rec.Status == storage.ExportExported {
		slog.DebugContext(ctx, "Section already exported", "id", msg.ID, "version", rec.Version)
		return nil
	}
	return w.export(ctx, []storage.PendingExport{rec}, msg.Op)
}

// ProcessPending exports one batch of sections still marked pending.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupExportCheck retries previously failed exports and drains a larger
// batch of pending rows. Useful after worker downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	n, err := w.source.ResetExportErrors(ctx)
	if err != nil {
		return fmt.Errorf("reset export errors: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Retrying failed exports", "count", n)
	}
	return w.processPending(ctx, w.batchSize*5)
}

func (w *ExportWorker) processPending(ctx context.Context, limit int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := w.source.GetPendingExports(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))
	return w.export(ctx, pending, "sync")
}

func (w *ExportWorker) export(ctx context.Context, recs []storage.PendingExport, op string) error {
	rows := make([]sheets.SectionRow, len(recs))
	for i, rec := range recs {
		rows[i] = sheets.NewSectionRow(rec.Section, op, w.loc)
	}

	ref, err := w.sheet.AppendRows(ctx, rows)
	if err != nil {
		for _, rec := range recs {
			if markErr := w.source.MarkExportError(ctx, rec.Section.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark export error", "id", rec.Section.ID, "error", markErr)
			}
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	for _, rec := range recs {
		ok, err := w.source.MarkExported(ctx, rec.Section.ID, rec.Version)
		if err != nil {
			// the rows are in the sheet; the next reconcile may append them again
			slog.ErrorContext(ctx, "Failed to mark as exported", "id", rec.Section.ID, "error", err)
			continue
		}
		if !ok {
			slog.InfoContext(ctx, "Section changed during export, left pending", "id", rec.Section.ID, "version", rec.Version)
		}
	}

	slog.InfoContext(ctx, "Exported sections", "count", len(recs), "op", op, "sheets_ref", ref)
	return nil
}
