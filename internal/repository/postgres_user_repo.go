package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/todoapi/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, name, email, password, profile_photo, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var photo sql.NullString
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &photo, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.ProfilePhoto = photo.String
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// EmailExists はメールアドレスが登録済みかを返す。
func (r *PostgresUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成し、採番されたIDを設定する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password, profile_photo, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		user.Name, user.Email, user.PasswordHash, nullString(user.ProfilePhoto), user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile は名前とプロフィール写真のファイル名を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $1, profile_photo = $2, updated_at = $3 WHERE id = $4`,
		user.Name, nullString(user.ProfilePhoto), user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return requireRow(result, "user", user.ID)
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, updatedAt, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRow(result, "user", userID)
}

func requireRow(result sql.Result, kind string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %d", kind, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
