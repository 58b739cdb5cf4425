package userservice

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base32"
	"errors"
	"time"

	"github.com/sushihentaime/quillpost/internal/common"
)

const tokenLength = 26

func hashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}

func generateToken() (plain string, hash []byte, err error) {
	randomBytes := make([]byte, 16)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", nil, err
	}

	plain = base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)

	return plain, hashToken(plain), nil
}

func newAuthToken(userID int) (*AuthToken, error) {
	accessPlain, accessHash, err := generateToken()
	if err != nil {
		return nil, err
	}

	refreshPlain, refreshHash, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()

	return &AuthToken{
		AccessTokenPlain:   accessPlain,
		AccessTokenHash:    accessHash,
		RefreshTokenPlain:  refreshPlain,
		RefreshTokenHash:   refreshHash,
		UserID:             userID,
		AccessTokenExpiry:  now.Add(AccessTokenTime),
		RefreshTokenExpiry: now.Add(RefreshTokenTime),
	}, nil
}

func (m *DBModel) createAuthToken(tx *sql.Tx, ctx context.Context, userID int) (*AuthToken, error) {
	authToken, err := newAuthToken(userID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO auth_tokens (access_token, refresh_token, user_id, access_token_expiry, refresh_token_expiry)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = tx.ExecContext(ctx, query, authToken.AccessTokenHash, authToken.RefreshTokenHash, authToken.UserID, authToken.AccessTokenExpiry, authToken.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	return authToken, nil
}

func (m *DBModel) getUserByToken(ctx context.Context, hash []byte) (*User, error) {
	var user User

	query := `
		SELECT u.id, u.name, u.email, u.role, u.created_at, u.updated_at, u.version
		FROM users u
		INNER JOIN auth_tokens t ON u.id = t.user_id
		WHERE t.access_token = $1 AND t.access_token_expiry > $2`

	err := m.db.QueryRowContext(ctx, query, hash, time.Now()).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &user, nil
}

// getAuthTokenHashes returns the access token hashes currently stored for the user.
func (m *DBModel) getAuthTokenHashes(ctx context.Context, userID int) ([][]byte, error) {
	query := `
		SELECT access_token
		FROM auth_tokens
		WHERE user_id = $1`

	rows, err := m.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes [][]byte
	for rows.Next() {
		var hash []byte
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}

func (m *DBModel) deleteAuthTokens(tx *sql.Tx, ctx context.Context, userID int) error {
	query := `
		DELETE FROM auth_tokens
		WHERE user_id = $1`

	_, err := tx.ExecContext(ctx, query, userID)
	return err
}

func (m *DBModel) deleteExpiredAuthTokens(tx *sql.Tx, ctx context.Context, userID int) error {
	query := `
		DELETE FROM auth_tokens
		WHERE user_id = $1 AND access_token_expiry <= NOW()`

	_, err := tx.ExecContext(ctx, query, userID)
	return err
}
