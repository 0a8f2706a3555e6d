package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/swap-mitra/city-vault/internal/domain/model"
)

// fileColumns is the column list shared by every files SELECT.
const fileColumns = `f.id, f.cid, f.user_id, f.filename, f.file_size, f.mime_type, f.uploaded_at`

// FileRepository gives access to the files table (ownership records).
type FileRepository interface {
	// GetByCIDAndUser returns the caller's own record for a CID.
	GetByCIDAndUser(ctx context.Context, cid, userID string) (*model.FileRecord, error)
	// GetByCID returns a record for the CID regardless of owner (earliest upload),
	// with Owner filled in.
	GetByCID(ctx context.Context, cid string) (*model.FileRecord, error)
	// Create inserts a record. Returns ErrConflict when (cid, user_id) already exists.
	Create(ctx context.Context, f *model.FileRecord) error
	// Delete removes a record by id.
	Delete(ctx context.Context, id string) error
	// CountByCID returns how many owners still reference the CID.
	CountByCID(ctx context.Context, cid string) (int, error)
	// ListByUser returns the user's records, newest first, optionally
	// filtered by a case-insensitive filename substring.
	ListByUser(ctx context.Context, userID string, filename string) ([]*model.FileRecord, error)
}

type fileRepo struct {
	db DBTX
}

// NewFileRepository creates the files repository.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) GetByCIDAndUser(ctx context.Context, cid, userID string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files f WHERE f.cid = $1 AND f.user_id = $2`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, cid, userID).Scan(
		&f.ID, &f.CID, &f.UserID, &f.Filename, &f.Size, &f.MimeType, &f.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file by cid and user: %w", err)
	}
	return f, nil
}

func (r *fileRepo) GetByCID(ctx context.Context, cid string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s, u.email, u.name
		FROM files f
		JOIN users u ON u.id = f.user_id
		WHERE f.cid = $1
		ORDER BY f.uploaded_at ASC, f.id ASC
		LIMIT 1`, fileColumns)

	f := &model.FileRecord{Owner: &model.FileOwner{}}
	err := r.db.QueryRow(ctx, query, cid).Scan(
		&f.ID, &f.CID, &f.UserID, &f.Filename, &f.Size, &f.MimeType, &f.UploadedAt,
		&f.Owner.Email, &f.Owner.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file by cid: %w", err)
	}
	return f, nil
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, cid, user_id, filename, file_size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.CID, f.UserID, f.Filename, f.Size, f.MimeType,
	).Scan(&f.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: file %s already recorded for user %s", ErrConflict, f.CID, f.UserID)
		}
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) CountByCID(ctx context.Context, cid string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE cid = $1`, cid).Scan(&count); err != nil {
		return 0, fmt.Errorf("count files by cid: %w", err)
	}
	return count, nil
}

func (r *fileRepo) ListByUser(ctx context.Context, userID string, filename string) ([]*model.FileRecord, error) {
	query, args := buildListQuery(userID, filename)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.CID, &f.UserID, &f.Filename, &f.Size, &f.MimeType, &f.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return result, nil
}

// buildListQuery builds the listing query; the filename filter is optional.
func buildListQuery(userID, filename string) (string, []any) {
	where := "WHERE f.user_id = $1"
	args := []any{userID}

	if filename != "" {
		where += " AND f.filename ILIKE $2"
		args = append(args, containsPattern(filename))
	}

	query := fmt.Sprintf(`SELECT %s FROM files f %s ORDER BY f.uploaded_at DESC, f.id DESC`, fileColumns, where)
	return query, args
}
