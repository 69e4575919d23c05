// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUnknownAvatar   = errors.New("unknown avatar")
)

type (
	UserID   string
	AvatarID string
)

// Avatars the coordinator accepts on join.
var Avatars = []AvatarID{"kazuha", "diluc", "ganyu", "hutao", "shotgun", "shenhe"}

func (a AvatarID) Valid() bool {
	for _, known := range Avatars {
		if a == known {
			return true
		}
	}
	return false
}

// Identity is the stable (user id, username, avatar) tuple of one visitor.
// It is fixed for the lifetime of a presence client.
type Identity struct {
	UserID   UserID   `json:"userId" mapstructure:"user_id"`
	Username string   `json:"username" mapstructure:"username"`
	AvatarID AvatarID `json:"avatarId" mapstructure:"avatar_id"`
}

// NewIdentity validates every field; use it at trust boundaries.
func NewIdentity(id UserID, username string, avatar AvatarID) (Identity, error) {
	if err := ValidateUserID(id); err != nil {
		return Identity{}, err
	}
	if err := ValidateUsername(username); err != nil {
		return Identity{}, err
	}
	if !avatar.Valid() {
		return Identity{}, ErrUnknownAvatar
	}
	return Identity{UserID: id, Username: username, AvatarID: avatar}, nil
}

func (i Identity) Member() Member {
	return Member{UserID: i.UserID, Username: i.Username, AvatarID: i.AvatarID}
}

func ValidateUserID(id UserID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}

func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
