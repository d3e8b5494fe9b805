package store

import (
	"database/sql"
	"fmt"

	"github.com/speechvault/speechvault/internal/model"
)

type LanguageStore struct {
	db *sql.DB
}

func NewLanguageStore(db *sql.DB) *LanguageStore {
	return &LanguageStore{db: db}
}

// Create inserts a language together with its first dialect and sample text
// in one transaction. Returns false if the name is already taken; the
// original creator row is left untouched.
func (s *LanguageStore) Create(name, firstDialect, sampleText string, creatorAccountID int64) (*model.LanguageCategory, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO languages (name, creator_account_id) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, creatorAccountID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert language: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO language_dialects (language_id, dialect) VALUES (?, ?)`,
		id, firstDialect,
	); err != nil {
		return nil, false, fmt.Errorf("insert first dialect: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO language_samples (language_id, sample_text) VALUES (?, ?)`,
		id, sampleText,
	); err != nil {
		return nil, false, fmt.Errorf("insert sample text: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	lang, err := s.GetByName(name)
	if err != nil {
		return nil, false, err
	}
	return lang, true, nil
}

// GetByName returns the language with its dialects and sample texts, or nil
// if the name is unknown.
func (s *LanguageStore) GetByName(name string) (*model.LanguageCategory, error) {
	var lang model.LanguageCategory
	row := s.db.QueryRow(
		`SELECT id, name, creator_account_id, created_at FROM languages WHERE name = ?`,
		name,
	)
	err := row.Scan(&lang.ID, &lang.Name, &lang.CreatorAccountID, &lang.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get language: %w", err)
	}

	lang.Dialects, err = s.dialects(lang.ID)
	if err != nil {
		return nil, err
	}
	lang.SampleTexts, err = s.sampleTexts(lang.ID)
	if err != nil {
		return nil, err
	}
	return &lang, nil
}

func (s *LanguageStore) dialects(languageID int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT dialect FROM language_dialects WHERE language_id = ? ORDER BY id`,
		languageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list dialects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan dialect: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *LanguageStore) sampleTexts(languageID int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT sample_text FROM language_samples WHERE language_id = ? ORDER BY id`,
		languageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sample texts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan sample text: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddDialect appends a dialect to an existing language. Adding a dialect
// that is already present is a no-op, not an error.
func (s *LanguageStore) AddDialect(languageID int64, dialect string) error {
	_, err := s.db.Exec(
		`INSERT INTO language_dialects (language_id, dialect) VALUES (?, ?)
		 ON CONFLICT(language_id, dialect) DO NOTHING`,
		languageID, dialect,
	)
	if err != nil {
		return fmt.Errorf("insert dialect: %w", err)
	}
	return nil
}

func (s *LanguageStore) AddSampleText(languageID int64, sampleText string) error {
	_, err := s.db.Exec(
		`INSERT INTO language_samples (language_id, sample_text) VALUES (?, ?)`,
		languageID, sampleText,
	)
	if err != nil {
		return fmt.Errorf("insert sample text: %w", err)
	}
	return nil
}

// HasDialect reports whether the language lists the dialect.
func (s *LanguageStore) HasDialect(languageID int64, dialect string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM language_dialects WHERE language_id = ? AND dialect = ?`,
		languageID, dialect,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has dialect: %w", err)
	}
	return n > 0, nil
}

// List returns all registered languages with dialects and samples attached.
func (s *LanguageStore) List() ([]*model.LanguageCategory, error) {
	rows, err := s.db.Query(`SELECT id, name, creator_account_id, created_at FROM languages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var langs []*model.LanguageCategory
	for rows.Next() {
		var lang model.LanguageCategory
		if err := rows.Scan(&lang.ID, &lang.Name, &lang.CreatorAccountID, &lang.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, &lang)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, lang := range langs {
		if lang.Dialects, err = s.dialects(lang.ID); err != nil {
			return nil, err
		}
		if lang.SampleTexts, err = s.sampleTexts(lang.ID); err != nil {
			return nil, err
		}
	}
	return langs, nil
}
