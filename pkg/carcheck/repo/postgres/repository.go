package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements carcheck.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const fileColumns = `id, filename, original_name, url, size, mime_type,
	uploaded_at, is_analyzed, classification, created_at, updated_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return carcheck.ErrFileNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("file already exists: %s", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("constraint %s violated", pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func scanFile(row pgx.Row) (*carcheck.FileRecord, error) {
	var file carcheck.FileRecord
	var classification []byte
	err := row.Scan(
		&file.ID, &file.FileName, &file.OriginalName, &file.URL, &file.Size, &file.MimeType,
		&file.UploadedAt, &file.IsAnalyzed, &classification, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if classification != nil {
		file.Classification = json.RawMessage(classification)
	}
	return &file, nil
}

func (r *Repository) Create(ctx context.Context, file *carcheck.FileRecord) error {
	query := `
		INSERT INTO files (
			id, filename, original_name, url, size, mime_type,
			uploaded_at, is_analyzed, classification, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var classification *string
	if carcheck.HasClassification(file.Classification) {
		s := string(file.Classification)
		classification = &s
	}

	_, err := r.db.Exec(ctx, query,
		file.ID, file.FileName, file.OriginalName, file.URL, file.Size, file.MimeType,
		file.UploadedAt, file.IsAnalyzed, classification, file.CreatedAt, file.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create file", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*carcheck.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get file", err)
	}
	return file, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*carcheck.FileRecord, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count files", err)
	}

	query := `SELECT ` + fileColumns + ` FROM files
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, r.handlePostgresError("list files", err)
	}
	defer rows.Close()

	files := []*carcheck.FileRecord{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, 0, r.handlePostgresError("scan file", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list files", err)
	}

	return files, total, nil
}

func (r *Repository) UpdateClassification(ctx context.Context, id uuid.UUID, classification json.RawMessage) (*carcheck.FileRecord, error) {
	query := `
		UPDATE files SET
			classification = $2::jsonb, is_analyzed = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + fileColumns

	file, err := scanFile(r.db.QueryRow(ctx, query, id, string(classification)))
	if err != nil {
		return nil, r.handlePostgresError("update classification", err)
	}
	return file, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return carcheck.ErrFileNotFound
	}
	return nil
}
