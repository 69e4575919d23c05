// Package identity bootstraps the Session Identity a presence client joins
// with: a coordinator-issued user id plus display name and avatar, kept in a
// small yaml file between runs.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultUsername = "guest"
	DefaultAvatar   = domain.AvatarID("kazuha")
)

var ErrNotFound = errors.New("identity file not found")

// Load reads a stored identity. Fields may be empty; callers validate.
func Load(path string) (domain.Identity, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Identity{}, ErrNotFound
		}
		return domain.Identity{}, fmt.Errorf("read identity %s: %w", path, err)
	}
	var id domain.Identity
	if err := v.Unmarshal(&id); err != nil {
		return domain.Identity{}, fmt.Errorf("parse identity %s: %w", path, err)
	}
	return id, nil
}

func Save(path string, id domain.Identity) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("user_id", string(id.UserID))
	v.Set("username", id.Username)
	v.Set("avatar_id", string(id.AvatarID))
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write identity %s: %w", path, err)
	}
	return nil
}

// Issuer hands out fresh user ids.
type Issuer interface {
	IssueUserID(ctx context.Context) (domain.UserID, error)
}

// HTTPIssuer asks the coordinator's POST /api/users.
type HTTPIssuer struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPIssuer(baseURL string) *HTTPIssuer {
	return &HTTPIssuer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (i *HTTPIssuer) IssueUserID(ctx context.Context) (domain.UserID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.BaseURL+"/api/users", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := i.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request user id: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("request user id: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		UserID domain.UserID `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode user id: %w", err)
	}
	if err := domain.ValidateUserID(body.UserID); err != nil {
		return "", fmt.Errorf("issued user id: %w", err)
	}
	return body.UserID, nil
}

// Ensure returns a complete identity stored at path. Non-empty username and
// avatar override what is stored; a missing user id is requested from issuer.
// The result is written back only when it changed.
func Ensure(ctx context.Context, path string, issuer Issuer, username string, avatar domain.AvatarID) (domain.Identity, error) {
	stored, err := Load(path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Identity{}, err
	}

	id := stored
	if username != "" {
		id.Username = username
	}
	if id.Username == "" {
		id.Username = DefaultUsername
	}
	if avatar != "" {
		id.AvatarID = avatar
	}
	if id.AvatarID == "" {
		id.AvatarID = DefaultAvatar
	}
	if id.UserID == "" {
		uid, err := issuer.IssueUserID(ctx)
		if err != nil {
			return domain.Identity{}, err
		}
		id.UserID = uid
		log.Info().Str("module", "identity").Str("user", string(uid)).Msg("user id issued")
	}

	id, err = domain.NewIdentity(id.UserID, id.Username, id.AvatarID)
	if err != nil {
		return domain.Identity{}, err
	}
	if id != stored {
		if err := Save(path, id); err != nil {
			return domain.Identity{}, err
		}
	}
	return id, nil
}
