package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements store.UserStore, store.RefreshTokenStore and store.Purger
// over database/sql.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.UserStore         = (*Store)(nil)
	_ store.RefreshTokenStore = (*Store)(nil)
	_ store.Purger            = (*Store)(nil)
)

// New binds a Store to db.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateUser inserts user. A duplicate username yields *store.ConstraintError.
func (s *Store) CreateUser(ctx context.Context, user store.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, createdAt); err != nil {
		return mapError(err)
	}
	return nil
}

// UserByUsername returns store.ErrNotFound when no user matches.
func (s *Store) UserByUsername(ctx context.Context, username string) (store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	var u store.User
	if err := s.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, store.ErrNotFound
		}
		return store.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored hash of userID.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Persist inserts a refresh token row keyed by its digest.
func (s *Store) Persist(ctx context.Context, owner store.Owner, key string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.ExecContext(ctx, query, key, owner.UserID, expiresAt); err != nil {
		return mapError(err)
	}
	return nil
}

// Redeem looks up key and joins the owner's username. The row is left in place.
func (s *Store) Redeem(ctx context.Context, key string) (store.Owner, error) {
	query := `
		SELECT rt.user_id, u.username, rt.expires_at
		FROM refresh_tokens rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.token_hash = $1
	`
	var (
		owner     store.Owner
		expiresAt time.Time
	)
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&owner.UserID, &owner.Username, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Owner{}, store.ErrNotFound
		}
		return store.Owner{}, fmt.Errorf("db error: %w", err)
	}
	if !expiresAt.After(s.now()) {
		return store.Owner{}, store.ErrExpired
	}
	return owner, nil
}

// Rotate deletes the row for key and inserts next for the same owner in one
// transaction. Concurrent rotations of one key serialize on the row lock taken
// by DELETE, so only the first caller sees a returned row.
func (s *Store) Rotate(ctx context.Context, key string, next store.Replacement) (owner store.Owner, err error) {
	del := `
		DELETE FROM refresh_tokens rt
		USING users u
		WHERE rt.token_hash = $1 AND u.id = rt.user_id
		RETURNING rt.user_id, u.username, rt.expires_at
	`
	ins := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`

	var expired bool
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var expiresAt time.Time
		if err := tx.QueryRowContext(ctx, del, key).Scan(&owner.UserID, &owner.Username, &expiresAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if !expiresAt.After(s.now()) {
			// Commit the delete of the dead row; nothing is inserted.
			expired = true
			return nil
		}
		if _, err := tx.ExecContext(ctx, ins, next.Key, owner.UserID, next.ExpiresAt); err != nil {
			return mapError(err)
		}
		return nil
	})
	if err != nil {
		return store.Owner{}, err
	}
	if expired {
		return store.Owner{}, store.ErrExpired
	}
	return owner, nil
}

// Revoke deletes the row for key. Unknown keys are not an error.
func (s *Store) Revoke(ctx context.Context, key string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
	`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeUser deletes every refresh token of userID.
func (s *Store) RevokeUser(ctx context.Context, userID string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows whose expires_at has passed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`
	res, err := s.db.ExecContext(ctx, query, s.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("db error: %w", cerr)
		}
	}()

	return fn(tx)
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &store.ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return fmt.Errorf("db error: %w", err)
}
