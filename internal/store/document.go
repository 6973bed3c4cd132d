package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/tvtime/internal/model"
)

// DocumentStore persists shared family documents for the document service.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the family's document, or nil if it has never been written.
func (s *DocumentStore) Get(familyID string) (*model.Document, error) {
	return getDocument(s.db, familyID)
}

// Merge applies a partial write to the family's document, creating it if
// needed, stamps lastUpdated and returns the resulting document.
func (s *DocumentStore) Merge(familyID string, fields model.Fields, now time.Time) (*model.Document, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	doc, err := getDocument(tx, familyID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &model.Document{}
	}
	doc.Merge(fields)
	updated := now.UTC()
	doc.LastUpdated = &updated

	children, err := marshalNullable(doc.Children, doc.Children == nil)
	if err != nil {
		return nil, fmt.Errorf("marshal children: %w", err)
	}
	chores, err := marshalNullable(doc.CustomChores, doc.CustomChores == nil)
	if err != nil {
		return nil, fmt.Errorf("marshal chores: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO family_documents (family_id, children, custom_chores, last_midnight_check, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(family_id) DO UPDATE SET
		   children = excluded.children,
		   custom_chores = excluded.custom_chores,
		   last_midnight_check = excluded.last_midnight_check,
		   last_updated = excluded.last_updated`,
		familyID, children, chores, doc.LastMidnightCheck, updated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) Delete(familyID string) error {
	if _, err := s.db.Exec(`DELETE FROM family_documents WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getDocument(q queryRower, familyID string) (*model.Document, error) {
	var (
		children, chores sql.NullString
		lastCheck        string
		lastUpdated      string
	)
	err := q.QueryRow(
		`SELECT children, custom_chores, last_midnight_check, last_updated FROM family_documents WHERE family_id = ?`,
		familyID,
	).Scan(&children, &chores, &lastCheck, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}

	doc := &model.Document{LastMidnightCheck: lastCheck}
	if children.Valid {
		if err := json.Unmarshal([]byte(children.String), &doc.Children); err != nil {
			return nil, fmt.Errorf("decode children: %w", err)
		}
	}
	if chores.Valid {
		if err := json.Unmarshal([]byte(chores.String), &doc.CustomChores); err != nil {
			return nil, fmt.Errorf("decode chores: %w", err)
		}
	}
	if lastUpdated != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
			doc.LastUpdated = &t
		}
	}
	return doc, nil
}

func marshalNullable(v any, isNull bool) (sql.NullString, error) {
	if isNull {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
