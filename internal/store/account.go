package store

import (
	"database/sql"
	"fmt"

	"github.com/speechvault/speechvault/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(s scanner) (*model.Account, error) {
	var a model.Account
	var stripeID sql.NullString
	err := s.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.BalanceMinor, &stripeID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeID.Valid {
		a.StripeCustomerID = &stripeID.String
	}
	return &a, nil
}

const accountCols = `id, email, password_hash, balance_minor, stripe_customer_id, created_at, updated_at`

func (s *AccountStore) Create(email, passwordHash string) (*model.Account, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (email, password_hash) VALUES (?, ?)`,
		email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(email string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByStripeCustomerID(customerID string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE stripe_customer_id = ?`, customerID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by stripe customer id: %w", err)
	}
	return a, nil
}

func (s *AccountStore) UpdateStripeCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET stripe_customer_id = ?, updated_at = datetime('now') WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

// Credit adds minor units to the wallet balance. Used by the top-up webhook.
func (s *AccountStore) Credit(id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	_, err := s.db.Exec(
		`UPDATE accounts SET balance_minor = balance_minor + ?, updated_at = datetime('now') WHERE id = ?`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

// CreditTx adds to the wallet inside a withdrawal transaction.
func (s *AccountStore) CreditTx(tx *sql.Tx, id int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	_, err := tx.Exec(
		`UPDATE accounts SET balance_minor = balance_minor + ?, updated_at = datetime('now') WHERE id = ?`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

// DebitTx subtracts from the wallet inside a purchase transaction. The
// WHERE guard makes a concurrent overdraw impossible; zero rows affected
// means insufficient balance. A non-positive amount is an error: debiting
// a negative value would mint money.
func (s *AccountStore) DebitTx(tx *sql.Tx, id int64, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive")
	}
	result, err := tx.Exec(
		`UPDATE accounts SET balance_minor = balance_minor - ?, updated_at = datetime('now')
		 WHERE id = ? AND balance_minor >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debit account: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
