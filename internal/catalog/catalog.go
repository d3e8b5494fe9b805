// Package catalog is the registry of languages and dialects. Registering a
// language first records the caller as its permanent creator, which is what
// earns the creator discount on that language's datasets.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/speechvault/speechvault/internal/model"
	"github.com/speechvault/speechvault/internal/store"
)

var (
	ErrLanguageExists   = errors.New("catalog: language already registered")
	ErrLanguageNotFound = errors.New("catalog: language not found")
	ErrDialectNotFound  = errors.New("catalog: dialect not found")
	ErrInvalidInput     = errors.New("catalog: name, dialect and sample text are required")
)

type Service struct {
	languages *store.LanguageStore
}

func NewService(languages *store.LanguageStore) *Service {
	return &Service{languages: languages}
}

// RegisterLanguage creates a language with its first dialect and sample
// text. The creator identity is recorded from this first successful call
// and never changes afterward.
func (s *Service) RegisterLanguage(name, firstDialect, sampleText string, callerAccountID int64) (*model.LanguageCategory, error) {
	name = strings.TrimSpace(name)
	firstDialect = strings.TrimSpace(firstDialect)
	sampleText = strings.TrimSpace(sampleText)
	if name == "" || firstDialect == "" || sampleText == "" {
		return nil, ErrInvalidInput
	}

	lang, created, err := s.languages.Create(name, firstDialect, sampleText, callerAccountID)
	if err != nil {
		return nil, fmt.Errorf("register language: %w", err)
	}
	if !created {
		return nil, ErrLanguageExists
	}
	return lang, nil
}

// AddDialect extends an existing language. Deliberately permissionless:
// anyone may grow the taxonomy, only first registration is rewarded.
func (s *Service) AddDialect(name, dialect string) error {
	dialect = strings.TrimSpace(dialect)
	if dialect == "" {
		return ErrInvalidInput
	}
	lang, err := s.languages.GetByName(name)
	if err != nil {
		return fmt.Errorf("add dialect: %w", err)
	}
	if lang == nil {
		return ErrLanguageNotFound
	}
	return s.languages.AddDialect(lang.ID, dialect)
}

// AddSampleText appends a sample text to an existing language.
func (s *Service) AddSampleText(name, sampleText string) error {
	sampleText = strings.TrimSpace(sampleText)
	if sampleText == "" {
		return ErrInvalidInput
	}
	lang, err := s.languages.GetByName(name)
	if err != nil {
		return fmt.Errorf("add sample text: %w", err)
	}
	if lang == nil {
		return ErrLanguageNotFound
	}
	return s.languages.AddSampleText(lang.ID, sampleText)
}

// IsCreator is the discount-eligibility predicate. Unknown languages are
// simply not created by the caller; this never errors on a lookup miss.
func (s *Service) IsCreator(name string, accountID int64) (bool, error) {
	lang, err := s.languages.GetByName(name)
	if err != nil {
		return false, fmt.Errorf("is creator: %w", err)
	}
	if lang == nil {
		return false, nil
	}
	return lang.CreatorAccountID == accountID, nil
}

// Validate checks that a language exists and lists the dialect.
func (s *Service) Validate(name, dialect string) error {
	lang, err := s.languages.GetByName(name)
	if err != nil {
		return fmt.Errorf("validate language: %w", err)
	}
	if lang == nil {
		return ErrLanguageNotFound
	}
	has, err := s.languages.HasDialect(lang.ID, dialect)
	if err != nil {
		return fmt.Errorf("validate dialect: %w", err)
	}
	if !has {
		return ErrDialectNotFound
	}
	return nil
}

func (s *Service) Get(name string) (*model.LanguageCategory, error) {
	return s.languages.GetByName(name)
}

func (s *Service) List() ([]*model.LanguageCategory, error) {
	return s.languages.List()
}
