package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dukerupert/prepper/internal/database"
)

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("unique constraint violation")

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Stores groups every repository over one connection or transaction.
// A *Stores built from a transaction is the unit of work handed to the
// service layer.
type Stores struct {
	Users       *UserStore
	Resets      *PasswordResetStore
	Groups      *GroupStore
	Memberships *MembershipStore
	Invitations *InvitationStore
	Items       *ItemStore
	Nutrients   *NutrientStore
	Basket      *BasketStore
	Lookups     *LookupStore
	Backups     *BackupStore
}

func New(q DBTX) *Stores {
	return &Stores{
		Users:       NewUserStore(q),
		Resets:      NewPasswordResetStore(q),
		Groups:      NewGroupStore(q),
		Memberships: NewMembershipStore(q),
		Invitations: NewInvitationStore(q),
		Items:       NewItemStore(q),
		Nutrients:   NewNutrientStore(q),
		Basket:      NewBasketStore(q),
		Lookups:     NewLookupStore(q),
		Backups:     NewBackupStore(q),
	}
}

// Runner opens request-scoped transactions.
type Runner struct {
	db *sqlx.DB
}

func NewRunner(db *sqlx.DB) *Runner {
	return &Runner{db: db}
}

// InTx runs fn with stores bound to a fresh transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (r *Runner) InTx(ctx context.Context, fn func(*Stores) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(New(tx))
	})
}

// psql builds squirrel queries with ? placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
