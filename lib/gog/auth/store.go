package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	loginCodeFileName = "loginCode.json"
	tokenFileName     = "token.json"
)

// resolves the per-user config directory for the tool. XDG_CONFIG_HOME
// takes precedence over ~/.config.
func DefaultRoot() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "gog-receipts"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gog-receipts"), nil
}

// Store persists the login code and token documents under a config root.
// reads fail soft, writes fail hard.
type Store struct {
	root string
}

func NewStore(root string) Store {
	return Store{root: root}
}

// returns the stored token, or false when the file is missing, unreadable,
// malformed, or fails the validity check
func (s Store) ReadToken() (Token, bool) {
	raw, err := os.ReadFile(filepath.Join(s.root, tokenFileName))
	if err != nil {
		return Token{}, false
	}
	var token Token
	err = json.Unmarshal(raw, &token)
	if err != nil || !token.Valid() {
		return Token{}, false
	}
	return token, true
}

func (s Store) ReadLoginCode() (LoginCode, bool) {
	raw, err := os.ReadFile(filepath.Join(s.root, loginCodeFileName))
	if err != nil {
		return LoginCode{}, false
	}
	var code LoginCode
	err = json.Unmarshal(raw, &code)
	if err != nil || code.LoginCode == "" {
		return LoginCode{}, false
	}
	return code, true
}

func (s Store) WriteToken(token Token) (string, error) {
	if !token.Valid() {
		return "", fmt.Errorf("refusing to store a token with no credentials")
	}
	return s.write(tokenFileName, token)
}

func (s Store) WriteLoginCode(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("refusing to store an empty login code")
	}
	return s.write(loginCodeFileName, LoginCode{
		LoginCode: code,
		CreatedAt: time.Now().UTC(),
	})
}

func (s Store) write(name string, document any) (string, error) {
	err := os.MkdirAll(s.root, 0o755)
	if err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	raw, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, name)
	err = os.WriteFile(path, raw, 0o600)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
