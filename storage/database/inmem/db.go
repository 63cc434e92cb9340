// Package inmemdb implements the domain repositories in memory. It backs the HTTP tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

// DB holds every table. Rows are stored by value, callers always get copies.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users        map[string]user.User
	resetTokens  map[string]user.ResetToken
	courses      map[string]course.Course
	downloads    []course.LessonDownload
	progress     map[string]progress.Progress
	requests     map[string]subscription.Request
	certificates map[string]certificate.Certificate
	visits       map[string]analytics.Visit
}

func Open() *DB {
	db := &DB{}
	db.Flush()
	return db
}

// Flush empties every table.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]user.User)
	db.resetTokens = make(map[string]user.ResetToken)
	db.courses = make(map[string]course.Course)
	db.downloads = nil
	db.progress = make(map[string]progress.Progress)
	db.requests = make(map[string]subscription.Request)
	db.certificates = make(map[string]certificate.Certificate)
	db.visits = make(map[string]analytics.Visit)
}

// Downloads returns the recorded lesson downloads.
func (db *DB) Downloads() []course.LessonDownload {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]course.LessonDownload(nil), db.downloads...)
}

// Transactor serializes transactions. Nothing is rolled back on error.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	return fn(nil)
}
