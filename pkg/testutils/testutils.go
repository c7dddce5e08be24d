// Package testutils holds fixtures shared by the service tests.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serenitylibrary/serenity/pkg/migrations"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Epoch is the fixed instant test clocks start from.
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

var seq atomic.Int64

// NewTestDB returns a migrated in-memory database. The pool is pinned to one
// connection so every query sees the same memory database.
func NewTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateBook inserts a book with the given number of copies, all on the shelf.
func CreateBook(t *testing.T, db bun.IDB, title string, copies int) *models.Book {
	t.Helper()
	book := &models.Book{
		CreatedAt:       Epoch,
		UpdatedAt:       Epoch,
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	_, err := db.NewInsert().Model(book).Exec(context.Background())
	require.NoError(t, err)
	return book
}

// CreateUser inserts a reader with a unique email.
func CreateUser(t *testing.T, db bun.IDB, name string) *models.User {
	t.Helper()
	user := &models.User{
		CreatedAt:        Epoch,
		UpdatedAt:        Epoch,
		Name:             name,
		Email:            fmt.Sprintf("reader%d@example.com", seq.Add(1)),
		PasswordHash:     "x",
		RegistrationDate: Epoch,
		Role:             models.RoleUser,
	}
	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

// ReloadBook fetches the current state of a book.
func ReloadBook(t *testing.T, db bun.IDB, id int) *models.Book {
	t.Helper()
	book := &models.Book{}
	err := db.NewSelect().Model(book).Where("b.id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return book
}

// ReloadUser fetches the current state of a user.
func ReloadUser(t *testing.T, db bun.IDB, id int) *models.User {
	t.Helper()
	user := &models.User{}
	err := db.NewSelect().Model(user).Where("u.id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return user
}

// CreateAdmin inserts a staff account.
func CreateAdmin(t *testing.T, db bun.IDB, name string) *models.User {
	t.Helper()
	user := CreateUser(t, db, name)
	user.Role = models.RoleAdmin
	_, err := db.NewUpdate().Model(user).Column("role").WherePK().Exec(context.Background())
	require.NoError(t, err)
	return user
}
