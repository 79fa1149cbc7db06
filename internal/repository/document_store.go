package repository

import (
	"context"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is a stored record together with its store-assigned id.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// DocumentStore is the persistence boundary for incident records.
// Add stamps a server timestamp on the record and returns its id.
type DocumentStore interface {
	Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Query returns up to limit documents ordered by orderBy descending.
	Query(ctx context.Context, collection, orderBy string, limit int) ([]Document, error)
	// QueryWhere is Query restricted to documents whose field equals value.
	QueryWhere(ctx context.Context, collection, field string, value interface{}, orderBy string, limit int) ([]Document, error)
}
