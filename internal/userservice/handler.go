package userservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sushihentaime/quillpost/internal/common"
)

var (
	ErrAuthenticationFailure = fmt.Errorf("invalid authentication credentials")
)

func NewUserService(db *sql.DB, mb common.MessageProducer, c *common.Cache) *UserService {
	return &UserService{
		m:  newUserModel(db),
		mb: mb,
		c:  c,
	}
}

// RegisterUser creates a new AUTHOR account and publishes a user.created event.
func (s *UserService) RegisterUser(ctx context.Context, name, email, password, confirmPassword string) (*User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	v := common.NewValidator()
	validateName(v, name)
	validateEmail(v, email)
	validatePassword(v, password)
	validatePasswordConfirmation(v, password, confirmPassword)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	u := User{
		Name:     name,
		Email:    email,
		Password: Password{Plain: password},
		Role:     common.RoleAuthor,
	}

	err := u.Password.set(u.Password.Plain)
	if err != nil {
		return nil, err
	}

	err = s.m.insertUser(ctx, &u)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			v.AddError("email", "a user with this email address already exists")
			return nil, v.ValidationError()
		default:
			return nil, err
		}
	}

	msg, err := json.Marshal(common.UserCreatedMessage{Name: u.Name, Email: u.Email})
	if err != nil {
		return nil, err
	}

	err = s.mb.Publish(ctx, msg, common.UserCreatedKey, common.UserExchange)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// LoginUser authenticates by email and password and returns the user with a freshly issued access
// token pair. Earlier unexpired pairs stay valid; expired ones are deleted in the same transaction.
func (s *UserService) LoginUser(ctx context.Context, email, password string) (*User, *AuthToken, error) {
	email = normalizeEmail(email)

	v := common.NewValidator()
	validateEmail(v, email)
	v.Check(password != "", "password", "must be provided")
	if !v.Valid() {
		return nil, nil, v.ValidationError()
	}

	user, err := s.m.getUserByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRecordNotFound):
			return nil, nil, ErrAuthenticationFailure
		default:
			return nil, nil, err
		}
	}

	ok, err := user.Password.compare(password)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrAuthenticationFailure
	}

	// best effort; the old hash keeps verifying if the upgrade fails
	if user.Password.needsRehash() {
		if err := user.Password.set(password); err == nil {
			if err := s.m.updateUserPassword(ctx, user.Password, user.ID, user.Version); err == nil {
				user.Version++
			}
		}
	}

	var authToken *AuthToken
	err = common.RunInTx(ctx, s.m.db, func(tx *sql.Tx) error {
		if err := s.m.deleteExpiredAuthTokens(tx, ctx, user.ID); err != nil {
			return err
		}

		authToken, err = s.m.createAuthToken(tx, ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return user, authToken, nil
}

// GetUserByAccessToken resolves a plain access token to its user. Results are cached until logout
// or role change.
func (s *UserService) GetUserByAccessToken(ctx context.Context, token string) (*User, error) {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	hash := hashToken(token)
	key := common.CacheKeyUserByAccessToken(hash)

	if cached, found := s.c.Get(key); found {
		if user, ok := cached.(*User); ok {
			return user, nil
		}
	}

	user, err := s.m.getUserByToken(ctx, hash)
	if err != nil {
		return nil, err
	}

	s.c.Set(key, user, userCacheTime)

	return user, nil
}

// LogoutUser revokes every token pair held by the user.
func (s *UserService) LogoutUser(ctx context.Context, userID int) error {
	v := common.NewValidator()
	common.ValidateID(v, userID, "user_id")
	if !v.Valid() {
		return v.ValidationError()
	}

	s.evictTokens(ctx, userID)

	return common.RunInTx(ctx, s.m.db, func(tx *sql.Tx) error {
		return s.m.deleteAuthTokens(tx, ctx, userID)
	})
}

func (s *UserService) GetUserByID(ctx context.Context, id int) (*User, error) {
	v := common.NewValidator()
	common.ValidateID(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getUserByID(ctx, id)
}

// SetUserRole changes the role of a user. Only administrators may do this.
func (s *UserService) SetUserRole(ctx context.Context, caller *common.Caller, id int, role common.Role) (*User, error) {
	if caller == nil {
		return nil, common.ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}

	v := common.NewValidator()
	common.ValidateID(v, id, "id")
	validateRole(v, role)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	user, err := s.m.getUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.Role == role {
		return user, nil
	}

	user, err = s.m.updateUserRole(ctx, id, role, user.Version)
	if err != nil {
		return nil, err
	}

	s.evictTokens(ctx, id)

	return user, nil
}

// EnsureAdmin creates the bootstrap administrator when no account uses the email yet, and promotes
// an existing account otherwise.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	v := common.NewValidator()
	validateName(v, name)
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	existing, err := s.m.getUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == common.RoleAdmin {
			return existing, nil
		}
		return s.m.updateUserRole(ctx, existing.ID, common.RoleAdmin, existing.Version)
	case !errors.Is(err, common.ErrRecordNotFound):
		return nil, err
	}

	u := User{
		Name:     name,
		Email:    email,
		Password: Password{Plain: password},
		Role:     common.RoleAdmin,
	}

	if err := u.Password.set(password); err != nil {
		return nil, err
	}

	err = s.m.insertUser(ctx, &u)
	if err != nil {
		// another instance bootstrapped the same account concurrently
		if errors.Is(err, ErrDuplicateEmail) {
			return s.m.getUserByEmail(ctx, email)
		}
		return nil, err
	}

	return &u, nil
}

func (s *UserService) evictTokens(ctx context.Context, userID int) {
	hashes, err := s.m.getAuthTokenHashes(ctx, userID)
	if err != nil {
		// fall back to dropping everything so no stale identity survives
		s.c.Flush()
		return
	}

	keys := make([]string, len(hashes))
	for i, hash := range hashes {
		keys[i] = common.CacheKeyUserByAccessToken(hash)
	}
	s.c.Delete(keys...)
}

// Caller converts the user into the identity threaded through write operations.
func (u *User) Caller() *common.Caller {
	if u == nil || u.IsAnonymous() {
		return nil
	}

	return &common.Caller{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

func (u *User) IsAnonymous() bool {
	return u == &AnonymousUser
}

func (u *User) IsAdmin() bool {
	return u.Role == common.RoleAdmin
}

// TokenExpired reports whether t is past its access expiry.
func (t *AuthToken) TokenExpired() bool {
	return !t.AccessTokenExpiry.After(time.Now())
}
