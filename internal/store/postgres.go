package store

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"hids-dashboard-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations creates tables if they don't exist
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

const userColumns = `id, username, password_hash, role, totp_secret, totp_enabled, last_password_change, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var totpSecret sql.NullString
	var lastPasswordChange sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role,
		&totpSecret, &user.TOTPEnabled, &lastPasswordChange, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}

	if totpSecret.Valid {
		user.TOTPSecret = totpSecret.String
	}
	if lastPasswordChange.Valid {
		user.LastPasswordChange = lastPasswordChange.Time
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// User methods

func (s *PostgresStore) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user, err := scanUser(s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING `+userColumns,
		username, passwordHash, role,
	))
	if isUniqueViolation(err) {
		return models.User{}, errors.Wrapf(ErrUsernameTaken, "%q", username)
	}
	if err != nil {
		return models.User{}, errors.Wrap(err, "create user")
	}
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, errors.Wrapf(ErrNotFound, "user %d", id)
	}
	return user, err
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, errors.Wrapf(ErrNotFound, "user %q", username)
	}
	return user, err
}

func (s *PostgresStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id int, username, role string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = $1, role = $2 WHERE id = $3`,
		username, role, id,
	)
	if isUniqueViolation(err) {
		return errors.Wrapf(ErrUsernameTaken, "%q", username)
	}
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	return requireAffected(result, "user %d", id)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int, password string) error {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, last_password_change = NOW() WHERE id = $2`,
		passwordHash, id,
	)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	return requireAffected(result, "user %d", id)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	return requireAffected(result, "user %d", id)
}

// 2FA methods

func (s *PostgresStore) UpdateUser2FA(ctx context.Context, id int, totpSecret string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`,
		totpSecret, enabled, id,
	)
	return errors.Wrap(err, "update 2fa")
}

func (s *PostgresStore) Disable2FA(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled = FALSE WHERE id = $1`,
		id,
	)
	return errors.Wrap(err, "disable 2fa")
}

// Audit methods

func (s *PostgresStore) InsertAudit(ctx context.Context, actorID int, action, targetType, targetID, metadata string) error {
	if metadata == "" {
		metadata = "{}"
	}
	var actor sql.NullInt64
	if actorID != 0 {
		actor = sql.NullInt64{Int64: int64(actorID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, NOW())`,
		actor, action, targetType, targetID, metadata,
	)
	return errors.Wrap(err, "insert audit log")
}

func (s *PostgresStore) ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id, metadata::text, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list audit logs")
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var actor sql.NullInt64
		var targetID sql.NullString
		if err := rows.Scan(&entry.ID, &actor, &entry.Action, &entry.TargetType, &targetID, &entry.Metadata, &entry.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan audit log")
		}
		entry.ActorID = int(actor.Int64)
		entry.TargetID = targetID.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func requireAffected(result sql.Result, format string, args ...any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, format, args...)
	}
	return nil
}
