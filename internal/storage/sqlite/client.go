package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/storage/models"
	"github.com/s3ai/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func newID() string { return uuid.New().String() }

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		doc_type TEXT,
		raw_content TEXT,
		chunk_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);
	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		response TEXT,
		source TEXT NOT NULL,
		response_time REAL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_query_source ON query_history(source);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, filename, title, doc_type, raw_content, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			title = excluded.title,
			raw_content = excluded.raw_content,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.Filename,
		doc.Title,
		doc.DocType,
		doc.RawContent,
		doc.ChunkCount,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("filename", doc.Filename))
	return nil
}

func (c *Client) GetDocumentByFilename(ctx context.Context, filename string) (*models.Document, error) {
	query := `SELECT id, filename, title, doc_type, raw_content, chunk_count, created_at, updated_at FROM documents WHERE filename = ?`

	var doc models.Document
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, filename).Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Title,
		&doc.DocType,
		&doc.RawContent,
		&doc.ChunkCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	query := `SELECT id, filename, title, doc_type, chunk_count, created_at, updated_at FROM documents ORDER BY updated_at DESC`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var createdAt, updatedAt int64
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Title, &doc.DocType, &doc.ChunkCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.CreatedAt = time.Unix(createdAt, 0)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *Client) DeleteChunksForDocument(ctx context.Context, docID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (c *Client) InsertChunk(ctx context.Context, chunk *models.DocumentChunk) error {
	query := `INSERT INTO document_chunks (id, doc_id, chunk_index, text, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(
		ctx,
		query,
		chunk.ID,
		chunk.DocID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

// RecordQuery satisfies the resolver's history recorder.
func (c *Client) RecordQuery(ctx context.Context, question, answer, source string, responseTime float64) error {
	query := `INSERT INTO query_history (id, query_text, response, source, response_time, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(
		ctx,
		query,
		newID(),
		question,
		answer,
		source,
		responseTime,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	return nil
}

func (c *Client) ListRecentQueries(ctx context.Context, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, query_text, response, source, response_time, created_at FROM query_history ORDER BY created_at DESC LIMIT ?`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var rec models.QueryRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.QueryText, &rec.Response, &rec.Source, &rec.ResponseTime, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}
