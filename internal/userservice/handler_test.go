package userservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/sushihentaime/quillpost/internal/common"
)

const testPassword = "TestPassword123!"

func setupTestEnvironment(t *testing.T) (*UserService, *sql.DB, *common.MockProducer, func()) {
	db := common.TestDB("file://../../migrations", t)
	mp := &common.MockProducer{}
	c := common.NewCache(5*time.Minute, 10*time.Minute)

	cleanup := func() {
		_, err := db.Exec("DELETE FROM auth_tokens")
		assert.NoError(t, err)

		_, err = db.Exec("DELETE FROM users")
		assert.NoError(t, err)

		mp.Messages = nil
		c.Flush()
	}

	return NewUserService(db, mp, c), db, mp, cleanup
}

func TestRegisterUser(t *testing.T) {
	s, db, mp, cleanup := setupTestEnvironment(t)

	testCases := []struct {
		name            string
		userName        string
		email           string
		password        string
		confirmPassword string
		expectedErr     error
	}{
		{
			name:            "valid user",
			userName:        "Test User",
			email:           "TestUser@Example.com",
			password:        testPassword,
			confirmPassword: testPassword,
		},
		{
			name:            "password mismatch",
			userName:        "Test User",
			email:           "testuser@example.com",
			password:        testPassword,
			confirmPassword: "Different123!",
			expectedErr:     common.ValidationError{Errors: map[string]string{"confirm_password": "must match password"}},
		},
		{
			name: "empty payload",
			expectedErr: common.ValidationError{Errors: map[string]string{
				"name":             "must be provided",
				"email":            "must be provided",
				"password":         "must be provided",
				"confirm_password": "must be provided",
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			user, err := s.RegisterUser(ctx, tc.userName, tc.email, tc.password, tc.confirmPassword)
			assert.Equal(t, tc.expectedErr, err)

			var count int
			assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))

			if tc.expectedErr != nil {
				assert.Nil(t, user)
				assert.Equal(t, 0, count)
				assert.Empty(t, mp.Messages)
				return
			}

			assert.Equal(t, 1, count)
			assert.Equal(t, "testuser@example.com", user.Email)
			assert.Equal(t, common.RoleAuthor, user.Role)

			assert.Len(t, mp.Messages, 1)
			assert.Equal(t, common.UserCreatedKey, mp.Messages[0].Key)
			assert.Equal(t, common.UserExchange, mp.Messages[0].Exchange)

			var msg common.UserCreatedMessage
			assert.NoError(t, json.Unmarshal(mp.Messages[0].Body, &msg))
			assert.Equal(t, "testuser@example.com", msg.Email)
		})
	}
}

func TestRegisterUserDuplicateEmail(t *testing.T) {
	s, _, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	_, err := s.RegisterUser(ctx, "First", "dup@example.com", testPassword, testPassword)
	assert.NoError(t, err)

	_, err = s.RegisterUser(ctx, "Second", "DUP@example.com", testPassword, testPassword)

	var vErr common.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Errors, "email")
}

func TestLoginUser(t *testing.T) {
	s, _, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	_, err := s.RegisterUser(ctx, "Test User", "login@example.com", testPassword, testPassword)
	assert.NoError(t, err)

	testCases := []struct {
		name        string
		email       string
		password    string
		expectedErr error
	}{
		{name: "valid credentials", email: "LOGIN@example.com", password: testPassword},
		{name: "wrong password", email: "login@example.com", password: "WrongPassword1!", expectedErr: ErrAuthenticationFailure},
		{name: "unknown email", email: "nobody@example.com", password: testPassword, expectedErr: ErrAuthenticationFailure},
		{
			name:        "missing password",
			email:       "login@example.com",
			expectedErr: common.ValidationError{Errors: map[string]string{"password": "must be provided"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user, token, err := s.LoginUser(ctx, tc.email, tc.password)
			assert.Equal(t, tc.expectedErr, err)

			if tc.expectedErr == nil {
				assert.Equal(t, "login@example.com", user.Email)
				assert.Len(t, token.AccessTokenPlain, tokenLength)
				assert.False(t, token.TokenExpired())
			}
		})
	}
}

func TestGetUserByAccessTokenAndLogout(t *testing.T) {
	s, _, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	registered, err := s.RegisterUser(ctx, "Token User", "token@example.com", testPassword, testPassword)
	assert.NoError(t, err)

	_, token, err := s.LoginUser(ctx, "token@example.com", testPassword)
	assert.NoError(t, err)

	user, err := s.GetUserByAccessToken(ctx, token.AccessTokenPlain)
	assert.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, found := s.c.Get(common.CacheKeyUserByAccessToken(hashToken(token.AccessTokenPlain)))
	assert.True(t, found)

	err = s.LogoutUser(ctx, registered.ID)
	assert.NoError(t, err)

	_, err = s.GetUserByAccessToken(ctx, token.AccessTokenPlain)
	assert.Equal(t, common.ErrRecordNotFound, err)

	_, err = s.GetUserByAccessToken(ctx, "bad")
	assert.Equal(t, common.ValidationError{Errors: map[string]string{"token": "invalid token"}}, err)
}

func TestLoginUserIssuesNewPair(t *testing.T) {
	s, db, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	registered, err := s.RegisterUser(ctx, "Twice", "twice@example.com", testPassword, testPassword)
	assert.NoError(t, err)

	_, first, err := s.LoginUser(ctx, "twice@example.com", testPassword)
	assert.NoError(t, err)

	_, err = db.Exec("UPDATE auth_tokens SET access_token_expiry = NOW() - INTERVAL '1 minute' WHERE user_id = $1", registered.ID)
	assert.NoError(t, err)

	_, second, err := s.LoginUser(ctx, "twice@example.com", testPassword)
	assert.NoError(t, err)

	_, third, err := s.LoginUser(ctx, "twice@example.com", testPassword)
	assert.NoError(t, err)

	assert.NotEqual(t, first.AccessTokenPlain, second.AccessTokenPlain)
	assert.NotEqual(t, second.AccessTokenPlain, third.AccessTokenPlain)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM auth_tokens WHERE user_id = $1", registered.ID).Scan(&count)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, token := range []*AuthToken{second, third} {
		user, err := s.GetUserByAccessToken(ctx, token.AccessTokenPlain)
		assert.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
	}
}

func TestSetUserRole(t *testing.T) {
	s, _, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	admin, err := s.EnsureAdmin(ctx, "Admin", "admin@example.com", testPassword)
	assert.NoError(t, err)
	author, err := s.RegisterUser(ctx, "Author", "author@example.com", testPassword, testPassword)
	assert.NoError(t, err)

	testCases := []struct {
		name        string
		caller      *common.Caller
		role        common.Role
		expectedErr error
	}{
		{name: "anonymous", caller: nil, role: common.RoleAdmin, expectedErr: common.ErrUnauthenticated},
		{name: "author", caller: author.Caller(), role: common.RoleAdmin, expectedErr: common.ErrForbidden},
		{
			name:        "invalid role",
			caller:      admin.Caller(),
			role:        common.Role("EDITOR"),
			expectedErr: common.ValidationError{Errors: map[string]string{"role": "must be ADMIN or AUTHOR"}},
		},
		{name: "admin promotes", caller: admin.Caller(), role: common.RoleAdmin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := s.SetUserRole(ctx, tc.caller, author.ID, tc.role)
			assert.Equal(t, tc.expectedErr, err)

			if tc.expectedErr == nil {
				assert.Equal(t, tc.role, user.Role)
			}
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	s, db, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	first, err := s.EnsureAdmin(ctx, "Admin", "Admin@Example.com", testPassword)
	assert.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, first.Role)

	second, err := s.EnsureAdmin(ctx, "Admin", "admin@example.com", testPassword)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'ADMIN'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	s, _, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ctx := context.Background()

	author, err := s.RegisterUser(ctx, "Author", "promote@example.com", testPassword, testPassword)
	assert.NoError(t, err)

	admin, err := s.EnsureAdmin(ctx, "Author", "promote@example.com", testPassword)
	assert.NoError(t, err)
	assert.Equal(t, author.ID, admin.ID)
	assert.Equal(t, common.RoleAdmin, admin.Role)
}

func TestLoginUserUpgradesPasswordCost(t *testing.T) {
	s, db, _, cleanup := setupTestEnvironment(t)
	defer cleanup()

	weak, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	assert.NoError(t, err)

	_, err = db.Exec("INSERT INTO users (name, email, password) VALUES ($1, $2, $3)", "Ada", "ada@example.com", weak)
	assert.NoError(t, err)

	user, _, err := s.LoginUser(context.Background(), "ada@example.com", testPassword)
	assert.NoError(t, err)
	assert.Equal(t, 2, user.Version)

	var stored []byte
	err = db.QueryRow("SELECT password FROM users WHERE email = $1", "ada@example.com").Scan(&stored)
	assert.NoError(t, err)

	cost, err := bcrypt.Cost(stored)
	assert.NoError(t, err)
	assert.Equal(t, passwordCost, cost)

	_, _, err = s.LoginUser(context.Background(), "ada@example.com", testPassword)
	assert.NoError(t, err)
}

func TestPasswordNeedsRehash(t *testing.T) {
	var p Password
	assert.True(t, p.needsRehash())

	assert.NoError(t, p.set(testPassword))
	assert.False(t, p.needsRehash())

	ok, err := p.compare(testPassword)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.compare("wrong")
	assert.NoError(t, err)
	assert.False(t, ok)
}
