package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したBearerトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.AccessToken) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO personal_access_tokens (public_id, user_id, name, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		token.PublicID, token.UserID, token.Name, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindByPublicID は公開IDでトークンを取得する。見つからない場合はnilを返す。
// 有効期限の判定は呼び出し側で行う。
func (r *PostgresTokenRepo) FindByPublicID(ctx context.Context, publicID string) (*model.AccessToken, error) {
	token := &model.AccessToken{}
	var lastUsedAt, expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, public_id, user_id, name, token_hash, last_used_at, expires_at, created_at
		 FROM personal_access_tokens
		 WHERE public_id = $1`,
		publicID,
	).Scan(&token.ID, &token.PublicID, &token.UserID, &token.Name, &token.TokenHash,
		&lastUsedAt, &expiresAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	if lastUsedAt.Valid {
		token.LastUsedAt = &lastUsedAt.Time
	}
	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}
	return token, nil
}

// Touch はトークンの最終利用日時を更新する。
func (r *PostgresTokenRepo) Touch(ctx context.Context, id int64, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE personal_access_tokens SET last_used_at = $1 WHERE id = $2`,
		usedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch token: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのトークンを削除する。
func (r *PostgresTokenRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM personal_access_tokens WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
