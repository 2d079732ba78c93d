package notestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

var noteColumns = []string{
	"id", "title", "content", "status", "slug", "tags", "urls", "hero_image",
	"scheduled_at", "published_at", "created_at", "updated_at", "revision",
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Get returns the note with the given id.
func (db *SQLite) Get(ctx context.Context, id string) (*models.Note, error) {
	return db.getOne(ctx, sq.Eq{"id": id})
}

// GetBySlug returns the note carrying slug.
func (db *SQLite) GetBySlug(ctx context.Context, slug string) (*models.Note, error) {
	return db.getOne(ctx, sq.Eq{"slug": slug})
}

func (db *SQLite) getOne(ctx context.Context, pred sq.Eq) (*models.Note, error) {
	query, args, err := sq.Select(noteColumns...).From("notes").Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("notestore: build get: %w", err)
	}
	n, err := scanNote(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notestore: get: %w", err)
	}
	return n, nil
}

// Insert stores a new note.
func (db *SQLite) Insert(ctx context.Context, n *models.Note) (*models.Note, error) {
	n = normalize(n)
	rev, err := Revision(n)
	if err != nil {
		return nil, err
	}
	n.Revision = rev

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("notestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, urlsJSON := mustJSON(n.Tags), mustJSON(n.URLs)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, status, slug, tags, urls, hero_image,
			scheduled_at, published_at, created_at, updated_at, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Content, string(n.Status), nullString(n.Slug), tagsJSON, urlsJSON, n.HeroImage,
		nullTime(n.ScheduledAt), nullTime(n.PublishedAt), n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano(), n.Revision)
	if err != nil {
		if isUniqueViolation(err) {
			if violatesSlug(err) {
				return nil, fmt.Errorf("%w: slug %q is taken", apperr.ErrConflict, n.Slug)
			}
			return nil, fmt.Errorf("%w: note %s", apperr.ErrAlreadyExists, n.ID)
		}
		return nil, fmt.Errorf("notestore: insert note: %w", err)
	}
	if err := replaceTags(ctx, tx, n.ID, n.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("notestore: commit: %w", err)
	}
	return n, nil
}

// Update replaces a stored note if its revision still equals expectedRevision.
func (db *SQLite) Update(ctx context.Context, n *models.Note, expectedRevision string) (*models.Note, error) {
	n = normalize(n)
	rev, err := Revision(n)
	if err != nil {
		return nil, err
	}
	n.Revision = rev

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("notestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET
			title        = ?,
			content      = ?,
			status       = ?,
			slug         = ?,
			tags         = ?,
			urls         = ?,
			hero_image   = ?,
			scheduled_at = ?,
			published_at = ?,
			updated_at   = ?,
			revision     = ?
		WHERE id = ? AND revision = ?
	`, n.Title, n.Content, string(n.Status), nullString(n.Slug), mustJSON(n.Tags), mustJSON(n.URLs), n.HeroImage,
		nullTime(n.ScheduledAt), nullTime(n.PublishedAt), n.UpdatedAt.UnixNano(), n.Revision,
		n.ID, expectedRevision)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: slug %q is taken", apperr.ErrConflict, n.Slug)
		}
		return nil, fmt.Errorf("notestore: update note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, db.missOrConflict(ctx, tx, n.ID)
	}
	if err := replaceTags(ctx, tx, n.ID, n.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("notestore: commit: %w", err)
	}
	return n, nil
}

// Delete removes a note and its tag rows.
func (db *SQLite) Delete(ctx context.Context, id, expectedRevision string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("notestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del := sq.Delete("notes").Where(sq.Eq{"id": id})
	if expectedRevision != "" {
		del = del.Where(sq.Eq{"revision": expectedRevision})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("notestore: build delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("notestore: delete note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return db.missOrConflict(ctx, tx, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("notestore: delete tags: %w", err)
	}
	return tx.Commit()
}

// List returns notes matching f, newest update first.
func (db *SQLite) List(ctx context.Context, f models.NoteFilter) ([]*models.Note, error) {
	limit, offset := pageBounds(f)

	q := sq.Select(noteColumns...).From("notes")
	if f.Status != nil {
		q = q.Where(sq.Eq{"status": string(*f.Status)})
	}
	if len(f.Tags) > 0 {
		sub, subArgs, err := sq.Select("note_id").From("note_tags").Where(sq.Eq{"tag": f.Tags}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("notestore: build tag filter: %w", err)
		}
		q = q.Where("id IN ("+sub+")", subArgs...)
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		q = q.Where(sq.Or{
			sq.Expr(`instr(fold(title), ?) > 0`, needle),
			sq.Expr(`instr(fold(content), ?) > 0`, needle),
		})
	}
	q = q.OrderBy("updated_at DESC", "id").Limit(uint64(limit)).Offset(uint64(offset))

	return db.query(ctx, q)
}

// DueScheduled returns scheduled notes whose time has elapsed, oldest first.
func (db *SQLite) DueScheduled(ctx context.Context, now time.Time) ([]*models.Note, error) {
	q := sq.Select(noteColumns...).From("notes").
		Where(sq.Eq{"status": string(models.StatusScheduled)}).
		Where(sq.NotEq{"scheduled_at": nil}).
		Where(sq.LtOrEq{"scheduled_at": now.UnixNano()}).
		OrderBy("scheduled_at", "id")
	return db.query(ctx, q)
}

// Slugs returns every assigned slug.
func (db *SQLite) Slugs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT slug FROM notes WHERE slug IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("notestore: slugs: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out[s] = struct{}{}
	}
	return out, rows.Err()
}

// Tags returns all distinct tags in lexical order.
func (db *SQLite) Tags(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT tag FROM note_tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("notestore: tags: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *SQLite) query(ctx context.Context, q sq.SelectBuilder) ([]*models.Note, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("notestore: build query: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notestore: query: %w", err)
	}
	defer rows.Close()

	out := []*models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("notestore: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// missOrConflict explains why a guarded write touched no rows.
func (db *SQLite) missOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.ErrNotFound
	case err != nil:
		return fmt.Errorf("notestore: check existence: %w", err)
	}
	return fmt.Errorf("%w: note %s was modified concurrently", apperr.ErrConflict, id)
}

func replaceTags(ctx context.Context, tx *sql.Tx, id string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("notestore: clear tags: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO note_tags (note_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("notestore: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, id, t); err != nil {
			return fmt.Errorf("notestore: insert tag: %w", err)
		}
	}
	return nil
}

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		n                      models.Note
		status, tags, urlsJSON string
		slug                   sql.NullString
		scheduled, published   sql.NullInt64
		created, updated       int64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &status, &slug, &tags, &urlsJSON, &n.HeroImage,
		&scheduled, &published, &created, &updated, &n.Revision); err != nil {
		return nil, err
	}
	n.Status = models.Status(status)
	n.Slug = slug.String
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(urlsJSON), &n.URLs); err != nil {
		return nil, fmt.Errorf("decode urls of %s: %w", n.ID, err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.URLs == nil {
		n.URLs = []string{}
	}
	n.ScheduledAt = fromNull(scheduled)
	n.PublishedAt = fromNull(published)
	n.CreatedAt = time.Unix(0, created).UTC()
	n.UpdatedAt = time.Unix(0, updated).UTC()
	return &n, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// violatesSlug tells a slug collision apart from a duplicate id.
func violatesSlug(err error) bool {
	return strings.Contains(err.Error(), "notes.slug")
}

func mustJSON(v []string) string {
	if v == nil {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
