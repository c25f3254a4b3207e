package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func newRoot() *cobra.Command {
	cmd := &cobra.Command{Use: "root"}
	cmd.PersistentFlags().String("server", "", "")
	cmd.PersistentFlags().String("email", "", "")
	cmd.PersistentFlags().String("token", "", "")
	return cmd
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	t.Setenv("SURVEY_ENC_KEY", "")

	cfg := &Settings{ServerURL: "cfg", Email: "cfg@x", RememberMe: true, Password: "cfgpw", IdentityKey: "cfgkey"}
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Run("config", func(t *testing.T) {
		r, err := Resolve(newRoot())
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if r.ServerURL != "cfg" || r.Email != "cfg@x" || r.Password != "cfgpw" || r.IdentityKey != "cfgkey" {
			t.Fatalf("unexpected %+v", r)
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("SURVEY_SERVER_URL", "env")
		t.Setenv("SURVEY_EMAIL", "env@x")
		t.Setenv("SURVEY_PASSWORD", "envpw")
		t.Setenv("SURVEY_IDENTITY_KEY", "envkey")
		r, err := Resolve(newRoot())
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if r.ServerURL != "env" || r.Email != "env@x" || r.Password != "envpw" || r.IdentityKey != "envkey" {
			t.Fatalf("unexpected %+v", r)
		}
	})

	t.Run("flag", func(t *testing.T) {
		t.Setenv("SURVEY_SERVER_URL", "env")
		root := newRoot()
		if err := root.PersistentFlags().Set("server", "flag"); err != nil {
			t.Fatalf("set server: %v", err)
		}
		if err := root.PersistentFlags().Set("email", "flag@x"); err != nil {
			t.Fatalf("set email: %v", err)
		}
		if err := root.PersistentFlags().Set("token", "flagtok"); err != nil {
			t.Fatalf("set token: %v", err)
		}
		r, err := Resolve(root)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if r.ServerURL != "flag" || r.Email != "flag@x" || r.PluginToken != "flagtok" {
			t.Fatalf("unexpected %+v", r)
		}
	})
}
