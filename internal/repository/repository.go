// Package repository is the GORM persistence layer.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Store groups the repositories that share one connection or transaction
type Store struct {
	db       *gorm.DB
	Sessions SessionRepository
	Messages MessageRepository
	Advisors AdvisorRepository
	Reports  FraudReportRepository
	Users    UserRepository
}

// NewStore binds every repository to db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Sessions: NewGormSessionRepository(db),
		Messages: NewGormMessageRepository(db),
		Advisors: NewGormAdvisorRepository(db),
		Reports:  NewGormFraudReportRepository(db),
		Users:    NewGormUserRepository(db),
	}
}

// DB returns the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single transaction.
// Returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Page bounds a list query
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// SQLite serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
