package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/store"
)

// TokenTypeBearer is the token_type reported with every issued pair.
const TokenTypeBearer = "Bearer"

// TokenPair is returned by Login and Refresh.
//
// In RotationStatic mode Refresh echoes the presented refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Username     string
	TokenType    string
	ExpiresIn    time.Duration
}

// UserStore is the boundary of the external users table.
type UserStore = store.UserStore

// RefreshTokenStore persists refresh token digests.
type RefreshTokenStore = store.RefreshTokenStore

// User is one row of the users table.
type User = store.User
