package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Resolved holds the effective connection settings of a command.
type Resolved struct {
	ServerURL   string
	Email       string
	Password    string
	IdentityURL string
	IdentityKey string
	// PluginToken seeds the token cache, bypassing the identity service.
	PluginToken string
	Settings    *Settings
}

// Resolve merges, in order of precedence, the root persistent flags, the
// SURVEY_* environment and the settings file.
func Resolve(cmd *cobra.Command) (Resolved, error) {
	flags := cmd.Root().PersistentFlags()
	flagURL, _ := flags.GetString("server")
	flagEmail, _ := flags.GetString("email")
	flagToken, _ := flags.GetString("token")

	cfg, err := Load()
	if err != nil {
		return Resolved{}, err
	}
	saved, err := cfg.SavedPassword()
	if err != nil {
		return Resolved{}, fmt.Errorf("saved password: %w", err)
	}

	return Resolved{
		ServerURL:   firstNonEmpty(flagURL, os.Getenv("SURVEY_SERVER_URL"), cfg.ServerURL),
		Email:       firstNonEmpty(flagEmail, os.Getenv("SURVEY_EMAIL"), cfg.Email),
		Password:    firstNonEmpty(os.Getenv("SURVEY_PASSWORD"), saved),
		IdentityURL: firstNonEmpty(os.Getenv("SURVEY_IDENTITY_URL"), cfg.IdentityURL),
		IdentityKey: firstNonEmpty(os.Getenv("SURVEY_IDENTITY_KEY"), cfg.IdentityKey),
		PluginToken: firstNonEmpty(flagToken, os.Getenv("SURVEY_PLUGIN_TOKEN")),
		Settings:    cfg,
	}, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
