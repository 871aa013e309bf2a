package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trustbond/api/assets"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

const defaultTimeout = 3 * time.Second

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

var ErrDuplicateRecord = errors.New("record already exists")

// Database interface defines available repositories
type Database interface {
	User() UserRepository
	RoleAssignment() RoleAssignmentRepository
	Activity() ActivityRepository
	KYCSubmission() KYCSubmissionRepository
	Loan() LoanRepository
	Transaction() TransactionRepository

	Close() error
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db                 *sqlx.DB
	userRepo           UserRepository
	roleAssignmentRepo RoleAssignmentRepository
	activityRepo       ActivityRepository
	kycSubmissionRepo  KYCSubmissionRepository
	loanRepo           LoanRepository
	transactionRepo    TransactionRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return &DatabaseImpl{db: db}, nil
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseImpl) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (d *DatabaseImpl) User() UserRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.userRepo == nil {
		d.userRepo = NewUserRepository(d.db)
	}
	return d.userRepo
}

func (d *DatabaseImpl) RoleAssignment() RoleAssignmentRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.roleAssignmentRepo == nil {
		d.roleAssignmentRepo = NewRoleAssignmentRepository(d.db)
	}
	return d.roleAssignmentRepo
}

func (d *DatabaseImpl) Activity() ActivityRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activityRepo == nil {
		d.activityRepo = NewActivityRepository(d.db)
	}
	return d.activityRepo
}

func (d *DatabaseImpl) KYCSubmission() KYCSubmissionRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.kycSubmissionRepo == nil {
		d.kycSubmissionRepo = NewKYCSubmissionRepository(d.db)
	}
	return d.kycSubmissionRepo
}

func (d *DatabaseImpl) Loan() LoanRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loanRepo == nil {
		d.loanRepo = NewLoanRepository(d.db)
	}
	return d.loanRepo
}

func (d *DatabaseImpl) Transaction() TransactionRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transactionRepo == nil {
		d.transactionRepo = NewTransactionRepository(d.db)
	}
	return d.transactionRepo
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func pick(db *sqlx.DB, tx *sqlx.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}
