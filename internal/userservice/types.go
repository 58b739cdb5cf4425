package userservice

import (
	"database/sql"
	"time"

	"github.com/sushihentaime/quillpost/internal/common"
)

const (
	AccessTokenTime  time.Duration = 7 * 24 * time.Hour
	RefreshTokenTime time.Duration = 30 * 24 * time.Hour

	userCacheTime time.Duration = 5 * time.Minute
)

var (
	AnonymousUser = User{}
)

type UserService struct {
	m  *DBModel
	mb common.MessageProducer
	c  *common.Cache
}

type DBModel struct {
	db *sql.DB
}

type User struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Password  Password    `json:"-"`
	Role      common.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Version   int         `json:"-"`
}

type Password struct {
	Plain string `json:"-"`
	hash  []byte `json:"-"`
}

// Authentication Token
type AuthToken struct {
	AccessTokenPlain   string    `json:"access_token"`
	AccessTokenHash    []byte    `json:"-"`
	RefreshTokenPlain  string    `json:"refresh_token,omitempty"`
	RefreshTokenHash   []byte    `json:"-"`
	UserID             int       `json:"user_id"`
	AccessTokenExpiry  time.Time `json:"access_token_expiry"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
}
