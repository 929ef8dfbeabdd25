package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/lobby-server/internal/proto"
)

// LoadUser reads the persisted identity at path. A missing file yields a
// fresh user with a new id and no display name; it is not written until SaveUser.
func LoadUser(path string) (proto.User, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return proto.User{UserID: uuid.NewString()}, nil
	}
	if err != nil {
		return proto.User{}, fmt.Errorf("read user file: %w", err)
	}

	var u proto.User
	if err := yaml.Unmarshal(data, &u); err != nil {
		return proto.User{}, fmt.Errorf("parse user file: %w", err)
	}
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	return u, nil
}

// SaveUser writes u to path, creating parent directories as needed.
func SaveUser(path string, u proto.User) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(u)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
