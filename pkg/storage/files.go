package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UploadedFile is the metadata record of one distinct byte sequence in
// the content-addressed store. The SHA-256 hex digest is the identity;
// at most one record exists per hash.
type UploadedFile struct {
	ID            string  `json:"id"`
	Title         *string `json:"title"`
	MimeType      *string `json:"mimeType"`
	UploadedAt    string  `json:"uploadedAt"`
	FirstUploader *int64  `json:"firstUploader"`
}

// UploadedFileByID loads a file record by content hash, or ErrNotFound.
func (db *DB) UploadedFileByID(ctx context.Context, id string) (*UploadedFile, error) {
	var f UploadedFile
	err := db.QueryRowContext(ctx,
		db.Rebind(`SELECT id, title, mime_type, uploaded_at, first_uploader FROM uploaded_files WHERE id = ?`), id,
	).Scan(&f.ID, &f.Title, &f.MimeType, &f.UploadedAt, &f.FirstUploader)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load uploaded file: %w", err)
	}
	return &f, nil
}

// UploadedFileExists reports whether a record with the given content
// hash exists.
func (db *DB) UploadedFileExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		db.Rebind(`SELECT 1 FROM uploaded_files WHERE id = ?`), id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check uploaded file: %w", err)
	}
	return true, nil
}

// InsertUploadedFile persists a new file record. A primary-key conflict
// means a concurrent upload of identical content won the race; that is
// reported as inserted=false rather than an error.
func (db *DB) InsertUploadedFile(ctx context.Context, f *UploadedFile) (inserted bool, err error) {
	if f.UploadedAt == "" {
		f.UploadedAt = FormatTime(time.Now())
	}
	_, err = db.ExecContext(ctx,
		db.Rebind(`INSERT INTO uploaded_files (id, title, mime_type, uploaded_at, first_uploader) VALUES (?, ?, ?, ?, ?)`),
		f.ID, f.Title, f.MimeType, f.UploadedAt, f.FirstUploader,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert uploaded file: %w", err)
	}
	return true, nil
}
