package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flarexio/docrag"
)

const documentColumns = `id, filename, file_path, file_size, uploader_id, uploaded_at, storage_type,
	vector_collection_id, status, progress, chunk_count, message, error, updated_at`

type documentRepository struct {
	db *sql.DB
}

var _ docrag.DocumentRepository = (*documentRepository)(nil)

func (r *documentRepository) Store(ctx context.Context, doc *docrag.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			uploader_id = excluded.uploader_id,
			storage_type = excluded.storage_type,
			vector_collection_id = excluded.vector_collection_id,
			status = excluded.status,
			progress = excluded.progress,
			chunk_count = excluded.chunk_count,
			message = excluded.message,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Filename, doc.FilePath, doc.FileSize, nullString(doc.UploaderID),
		doc.UploadedAt.UTC(), doc.StorageType, nullString(doc.VectorCollectionID),
		string(doc.Status), doc.Progress, doc.ChunkCount, nullString(doc.Message),
		nullString(doc.Error), doc.UpdatedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	return nil
}

func (r *documentRepository) Update(ctx context.Context, doc *docrag.Document) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE documents SET
			vector_collection_id = ?,
			status = ?,
			progress = ?,
			chunk_count = ?,
			message = ?,
			error = ?,
			updated_at = ?
		WHERE id = ?
	`, nullString(doc.VectorCollectionID), string(doc.Status), doc.Progress, doc.ChunkCount,
		nullString(doc.Message), nullString(doc.Error), doc.UpdatedAt.UTC(), doc.ID)

	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return docrag.ErrDocumentNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*docrag.Document, error) {
	var (
		doc                                  docrag.Document
		status                               string
		uploader, collection, message, cause sql.NullString
	)

	err := row.Scan(&doc.ID, &doc.Filename, &doc.FilePath, &doc.FileSize, &uploader,
		&doc.UploadedAt, &doc.StorageType, &collection, &status, &doc.Progress,
		&doc.ChunkCount, &message, &cause, &doc.UpdatedAt)

	if err != nil {
		return nil, err
	}

	doc.UploaderID = uploader.String
	doc.VectorCollectionID = collection.String
	doc.Status = docrag.DocumentStatus(status)
	doc.Message = message.String
	doc.Error = cause.String

	return &doc, nil
}

func (r *documentRepository) Find(ctx context.Context, id string) (*docrag.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docrag.ErrDocumentNotFound
		}

		return nil, fmt.Errorf("scanning document: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) List(ctx context.Context, skip int, limit int) ([]*docrag.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		ORDER BY uploaded_at DESC
		LIMIT ? OFFSET ?
	`, limit, skip)

	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*docrag.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return docrag.ErrDocumentNotFound
	}

	return nil
}

func (r *documentRepository) CountIndexed(ctx context.Context) (int, error) {
	var n int

	row := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE status = ? AND chunk_count > 0",
		string(docrag.StatusCompleted))

	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}

	return n, nil
}
