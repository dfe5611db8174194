package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tempo/internal/core"

	_ "modernc.org/sqlite"
)

// Export states of a section row.
const (
	ExportPending  = "pending"
	ExportExported = "exported"
	ExportError    = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: writers are serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.NewStorageError("ping", r.db.PingContext(ctx))
}

// DataVersion returns a counter that changes on every category or section
// write committed to the database file, from this or any other process.
func (r *SQLiteRepository) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, "SELECT value FROM data_version WHERE id = 1").Scan(&v)
	if err != nil {
		return 0, core.NewStorageError("read data version", err)
	}
	return v, nil
}

const categoryColumns = "id, owner_id, name, color, created_at"

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, core.NewStorageError("list categories", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color, &c.CreatedAt); err != nil {
			return nil, core.NewStorageError("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list categories", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, core.NewStorageError("get category", err)
	}
	return c, nil
}

// InsertCategory inserts only when the owner has no category with the same
// name. The guard lives in the statement itself so it is atomic.
func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, color, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM categories WHERE owner_id = ? AND name = ?)`,
		c.ID, c.OwnerID, c.Name, c.Color, c.CreatedAt, c.OwnerID, c.Name)
	if err != nil {
		return core.NewStorageError("insert category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("insert category", err)
	}
	if n == 0 {
		return core.ErrDuplicateName
	}

	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "owner_id", c.OwnerID, "name", c.Name)
	return nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = COALESCE(?, name), color = COALESCE(?, color) WHERE id = ?",
		nullString(patch.Name), nullString(patch.Color), id)
	if err != nil {
		return core.NewStorageError("update category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("update category", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category, and with cascade every section that
// references it, in one transaction.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string, cascade bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin delete category", err)
	}
	defer tx.Rollback()

	var removed int64
	if cascade {
		res, err := tx.ExecContext(ctx, "DELETE FROM time_sections WHERE category_id = ?", id)
		if err != nil {
			return core.NewStorageError("cascade delete sections", err)
		}
		removed, _ = res.RowsAffected()
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
		return core.NewStorageError("delete category", err)
	}
	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit delete category", err)
	}

	slog.InfoContext(ctx, "Category deleted from SQLite", "id", id, "cascade", cascade, "sections_removed", removed)
	return nil
}

const sectionColumns = "id, owner_id, category_id, title, start_time, end_time, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner, extra ...any) (core.TimeSection, error) {
	var s core.TimeSection
	var title sql.NullString
	dest := append([]any{&s.ID, &s.OwnerID, &s.CategoryID, &title, &s.StartTime, &s.EndTime, &s.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, err
	}
	if title.Valid {
		t := title.String
		s.Title = &t
	}
	return s, nil
}

func (r *SQLiteRepository) GetSection(ctx context.Context, id string) (core.TimeSection, error) {
	s, err := scanSection(r.db.QueryRowContext(ctx, "SELECT "+sectionColumns+" FROM time_sections WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeSection{}, core.ErrNotFound
	}
	if err != nil {
		return core.TimeSection{}, core.NewStorageError("get section", err)
	}
	return s, nil
}

// InsertSection inserts only when the category exists and belongs to the
// section's owner.
func (r *SQLiteRepository) InsertSection(ctx context.Context, s core.TimeSection) error {
	if err := core.ValidateInterval(s.StartTime, s.EndTime); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO time_sections (id, owner_id, category_id, title, start_time, end_time, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM categories WHERE id = ? AND owner_id = ?)`,
		s.ID, s.OwnerID, s.CategoryID, nullString(s.Title), s.StartTime, s.EndTime, s.CreatedAt,
		s.CategoryID, s.OwnerID)
	if err != nil {
		return core.NewStorageError("insert section", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("insert section", err)
	}
	if n == 0 {
		return core.ErrInvalidCategory
	}

	slog.InfoContext(ctx, "Section saved to SQLite",
		"id", s.ID,
		"owner_id", s.OwnerID,
		"category_id", s.CategoryID,
		"start_time", s.StartTime,
		"end_time", s.EndTime)
	return nil
}

// UpdateSection merges the patch into the stored row inside a transaction.
// Each successful update bumps the row version and marks it pending export.
func (r *SQLiteRepository) UpdateSection(ctx context.Context, id string, patch core.SectionPatch) (core.TimeSection, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.TimeSection{}, core.NewStorageError("begin update section", err)
	}
	defer tx.Rollback()

	cur, err := scanSection(tx.QueryRowContext(ctx, "SELECT "+sectionColumns+" FROM time_sections WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeSection{}, core.ErrNotFound
	}
	if err != nil {
		return core.TimeSection{}, core.NewStorageError("load section", err)
	}

	next, err := patch.Apply(cur)
	if err != nil {
		return core.TimeSection{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE time_sections
		SET category_id = ?, title = ?, start_time = ?, end_time = ?,
		    version = version + 1, export_status = ?
		WHERE id = ?`,
		next.CategoryID, nullString(next.Title), next.StartTime, next.EndTime, ExportPending, id)
	if err != nil {
		return core.TimeSection{}, core.NewStorageError("update section", err)
	}
	if err := tx.Commit(); err != nil {
		return core.TimeSection{}, core.NewStorageError("commit update section", err)
	}
	return next, nil
}

func (r *SQLiteRepository) DeleteSection(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM time_sections WHERE id = ?", id); err != nil {
		return core.NewStorageError("delete section", err)
	}
	return nil
}

const enrichedSelect = `
	SELECT s.id, s.owner_id, s.category_id, s.title, s.start_time, s.end_time, s.created_at,
	       c.id, c.owner_id, c.name, c.color, c.created_at, s.version, s.export_status
	FROM time_sections s
	LEFT JOIN categories c ON c.id = s.category_id`

// PendingExport is an enriched section with the row version and export
// status it was read at.
type PendingExport struct {
	Section core.EnrichedSection
	Version int64
	Status  string
}

func scanEnriched(row rowScanner) (PendingExport, error) {
	var (
		cID, cOwner, cName, cColor sql.NullString
		cCreated                   sql.NullInt64
		rec                        PendingExport
	)
	s, err := scanSection(row, &cID, &cOwner, &cName, &cColor, &cCreated, &rec.Version, &rec.Status)
	if err != nil {
		return PendingExport{}, err
	}
	ref := core.Unresolved()
	if cID.Valid {
		ref = core.Resolved(core.Category{
			ID:        cID.String,
			OwnerID:   cOwner.String,
			Name:      cName.String,
			Color:     cColor.String,
			CreatedAt: cCreated.Int64,
		})
	}
	rec.Section = core.EnrichedSection{TimeSection: s, Category: ref}
	return rec, nil
}

// ListSectionsByRange returns the owner's sections whose start lies in
// [from, to], joined with their category.
func (r *SQLiteRepository) ListSectionsByRange(ctx context.Context, ownerID string, from, to int64, categoryID *string) ([]core.EnrichedSection, error) {
	out := make([]core.EnrichedSection, 0)
	if from > to {
		return out, nil
	}

	var q strings.Builder
	q.WriteString(enrichedSelect)
	q.WriteString(" WHERE s.owner_id = ? AND s.start_time >= ? AND s.start_time <= ?")
	args := []any{ownerID, from, to}
	if categoryID != nil {
		q.WriteString(" AND s.category_id = ?")
		args = append(args, *categoryID)
	}
	q.WriteString(" ORDER BY s.start_time, s.id")

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, core.NewStorageError("list sections", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanEnriched(rows)
		if err != nil {
			return nil, core.NewStorageError("scan section", err)
		}
		out = append(out, rec.Section)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list sections", err)
	}
	return out, nil
}

// GetSectionForExport loads one enriched section with its version.
func (r *SQLiteRepository) GetSectionForExport(ctx context.Context, id string) (PendingExport, error) {
	rec, err := scanEnriched(r.db.QueryRowContext(ctx, enrichedSelect+" WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return PendingExport{}, core.ErrNotFound
	}
	if err != nil {
		return PendingExport{}, core.NewStorageError("get section for export", err)
	}
	return rec, nil
}

// GetPendingExports returns up to limit sections not yet exported, oldest first.
func (r *SQLiteRepository) GetPendingExports(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx,
		enrichedSelect+" WHERE s.export_status = ? ORDER BY s.created_at, s.id LIMIT ?", ExportPending, limit)
	if err != nil {
		return nil, core.NewStorageError("get pending exports", err)
	}
	defer rows.Close()

	var out []PendingExport
	for rows.Next() {
		rec, err := scanEnriched(rows)
		if err != nil {
			return nil, core.NewStorageError("scan pending export", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("get pending exports", err)
	}
	return out, nil
}

// MarkExported flags the section as exported unless it changed after version
// was read. It reports whether the row was updated.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, version int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE time_sections SET export_status = ?, exported_at = ? WHERE id = ? AND version = ?",
		ExportExported, time.Now().UnixMilli(), id, version)
	if err != nil {
		return false, core.NewStorageError("mark section exported", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.NewStorageError("mark section exported", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Section marked as exported", "id", id, "version", version)
	}
	return n > 0, nil
}

// MarkExportError flags the section so the scheduled reconcile skips it.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE time_sections SET export_status = ? WHERE id = ?", ExportError, id); err != nil {
		return core.NewStorageError("mark section export error", err)
	}
	slog.WarnContext(ctx, "Section marked with export error", "id", id)
	return nil
}

// ResetExportErrors moves failed exports back to pending.
func (r *SQLiteRepository) ResetExportErrors(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE time_sections SET export_status = ? WHERE export_status = ?", ExportPending, ExportError)
	if err != nil {
		return 0, core.NewStorageError("reset export errors", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
