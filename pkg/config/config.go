package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"

	"github.com/faciam-dev/geosurvey/pkg/crypto"
)

// HomeEnv overrides the settings directory.
const HomeEnv = "SURVEYCTL_HOME"

// Settings is the persisted state of surveyctl.
type Settings struct {
	ServerURL  string `json:"server_url" default:"https://acolita.com/survey"`
	Email      string `json:"email,omitempty"`
	RememberMe bool   `json:"remember_me"`
	// Password is only written when RememberMe is set and no encryption
	// key is configured.
	Password    string `json:"password,omitempty"`
	PasswordEnc string `json:"password_enc,omitempty"`
	IdentityURL string `json:"identity_url,omitempty" default:"https://neixcsnkwtgdxkucfcnb.supabase.co"`
	IdentityKey string `json:"identity_key,omitempty"`
	// DropOnFailure drops a new survey table when form registration fails.
	DropOnFailure bool `json:"drop_on_failure"`
	Version       int  `json:"version" default:"1"`
}

func Dir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".surveyctl")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the settings file. A missing file yields the defaults.
func Load() (*Settings, error) {
	s := &Settings{}
	p, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(b, s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
	}
	if err := defaults.Set(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes s atomically with owner-only permissions.
func Save(s *Settings) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Remember records the login. The password is kept only when remember is
// set; it is encrypted when an encryption key is available.
func (s *Settings) Remember(email, password string, remember bool) error {
	s.Email = email
	s.RememberMe = remember
	s.Password, s.PasswordEnc = "", ""
	if !remember || password == "" {
		return nil
	}
	if crypto.Enabled() {
		enc, err := crypto.EncryptString(password)
		if err != nil {
			return fmt.Errorf("encrypt password: %w", err)
		}
		s.PasswordEnc = enc
		return nil
	}
	s.Password = password
	return nil
}

// SavedPassword returns the remembered password, if any.
func (s *Settings) SavedPassword() (string, error) {
	if !s.RememberMe {
		return "", nil
	}
	if s.PasswordEnc != "" {
		return crypto.DecryptString(s.PasswordEnc)
	}
	return s.Password, nil
}

// Forget drops the remembered password but keeps the email.
func (s *Settings) Forget() {
	s.RememberMe = false
	s.Password, s.PasswordEnc = "", ""
}
