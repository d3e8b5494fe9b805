package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/speechvault/speechvault/internal/model"
)

type DatasetStore struct {
	db *sql.DB
}

func NewDatasetStore(db *sql.DB) *DatasetStore {
	return &DatasetStore{db: db}
}

func scanDataset(sc scanner) (*model.Dataset, error) {
	var d model.Dataset
	var contentRef, contentKeyID sql.NullString
	err := sc.Scan(
		&d.ID, &d.CreatorAccountID, &d.Language, &d.Dialect, &d.DurationSeconds,
		&d.Status, &d.PolicyID, &contentRef, &contentKeyID, &d.AccumulatedEarnings,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if contentRef.Valid {
		d.ContentRef = &contentRef.String
	}
	if contentKeyID.Valid {
		d.ContentKeyID = &contentKeyID.String
	}
	return &d, nil
}

const datasetCols = `id, creator_account_id, language, dialect, duration_seconds, status, policy_id, content_ref, content_key_id, accumulated_earnings, created_at, updated_at`

// generateCapToken creates a creator capability in the format SV-XXXX-XXXX-XXXX-XXXX.
func generateCapToken() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate cap token: %w", err)
	}
	h := strings.ToUpper(hex.EncodeToString(b))
	return fmt.Sprintf("SV-%s-%s-%s-%s", h[0:4], h[4:8], h[8:12], h[12:16]), nil
}

// Create inserts the dataset metadata row together with its capability in
// one transaction. The cap token exists only because this call minted it;
// it is returned exactly once.
func (s *DatasetStore) Create(creatorAccountID int64, language, dialect string, durationSeconds int64, policyID string) (*model.Dataset, *model.DatasetCap, error) {
	token, err := generateCapToken()
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO datasets (creator_account_id, language, dialect, duration_seconds, policy_id)
		 VALUES (?, ?, ?, ?, ?)`,
		creatorAccountID, language, dialect, durationSeconds, policyID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert dataset: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	capResult, err := tx.Exec(
		`INSERT INTO dataset_caps (dataset_id, token) VALUES (?, ?)`,
		id, token,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert dataset cap: %w", err)
	}
	capID, err := capResult.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	ds, err := s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	cap := &model.DatasetCap{ID: capID, DatasetID: id, Token: token, CreatedAt: ds.CreatedAt}
	return ds, cap, nil
}

func (s *DatasetStore) GetByID(id int64) (*model.Dataset, error) {
	row := s.db.QueryRow(`SELECT `+datasetCols+` FROM datasets WHERE id = ?`, id)
	d, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	return d, nil
}

// GetCap resolves a capability token to the dataset it was minted for, or
// nil if the token is unknown.
func (s *DatasetStore) GetCap(token string) (*model.DatasetCap, error) {
	var c model.DatasetCap
	row := s.db.QueryRow(
		`SELECT id, dataset_id, token, created_at FROM dataset_caps WHERE token = ?`,
		token,
	)
	err := row.Scan(&c.ID, &c.DatasetID, &c.Token, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset cap: %w", err)
	}
	return &c, nil
}

// AttachContent publishes the dataset. The status guard in the WHERE clause
// makes the transition one-way: a second attach matches zero rows.
func (s *DatasetStore) AttachContent(id int64, contentRef, contentKeyID string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE datasets SET content_ref = ?, content_key_id = ?, status = 'published', updated_at = datetime('now')
		 WHERE id = ? AND status = 'created'`,
		contentRef, contentKeyID, id,
	)
	if err != nil {
		return false, fmt.Errorf("attach content: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// CreditEarningsTx adds a purchase amount to accumulated earnings inside
// the purchase transaction. Additive only; a non-positive amount is an
// error so earnings can never be drained through this path.
func (s *DatasetStore) CreditEarningsTx(tx *sql.Tx, id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("earnings credit must be positive")
	}
	_, err := tx.Exec(
		`UPDATE datasets SET accumulated_earnings = accumulated_earnings + ?, updated_at = datetime('now')
		 WHERE id = ?`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("credit earnings: %w", err)
	}
	return nil
}

// ZeroEarningsTx zeroes accumulated earnings and returns the prior balance.
func (s *DatasetStore) ZeroEarningsTx(tx *sql.Tx, id int64) (int64, error) {
	var prior int64
	err := tx.QueryRow(`SELECT accumulated_earnings FROM datasets WHERE id = ?`, id).Scan(&prior)
	if err != nil {
		return 0, fmt.Errorf("read earnings: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE datasets SET accumulated_earnings = 0, updated_at = datetime('now') WHERE id = ?`,
		id,
	); err != nil {
		return 0, fmt.Errorf("zero earnings: %w", err)
	}
	return prior, nil
}

func (s *DatasetStore) List() ([]*model.Dataset, error) {
	return s.list(`SELECT ` + datasetCols + ` FROM datasets ORDER BY created_at DESC, id DESC`)
}

func (s *DatasetStore) ListByCreator(creatorAccountID int64) ([]*model.Dataset, error) {
	return s.list(
		`SELECT `+datasetCols+` FROM datasets WHERE creator_account_id = ? ORDER BY created_at DESC, id DESC`,
		creatorAccountID,
	)
}

func (s *DatasetStore) ListByLanguage(language string) ([]*model.Dataset, error) {
	return s.list(
		`SELECT `+datasetCols+` FROM datasets WHERE language = ? ORDER BY created_at DESC, id DESC`,
		language,
	)
}

func (s *DatasetStore) list(query string, args ...any) ([]*model.Dataset, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []*model.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
