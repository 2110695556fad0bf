package sqlite

import (
	"context"
	"fmt"

	"github.com/meterly/subgate/domain/generate"
	"github.com/meterly/subgate/ports"
)

// DocStore is a SQLite implementation of ports.DocumentStore.
type DocStore struct {
	db *DB
}

// NewDocStore creates a new document store.
func NewDocStore(db *DB) *DocStore {
	return &DocStore{db: db}
}

// Create stores a completed document.
func (s *DocStore) Create(ctx context.Context, doc generate.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, customer_ref, topic, title, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.CustomerRef, doc.Topic, doc.Title, doc.Content, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// ListByCustomer returns the most recent documents for a customer.
func (s *DocStore) ListByCustomer(ctx context.Context, customerRef string, limit int) ([]generate.Document, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_ref, topic, title, content, created_at
		FROM documents
		WHERE customer_ref = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		customerRef, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []generate.Document
	for rows.Next() {
		var doc generate.Document
		if err := rows.Scan(&doc.ID, &doc.CustomerRef, &doc.Topic, &doc.Title, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// Ensure interface compliance.
var _ ports.DocumentStore = (*DocStore)(nil)
