package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/geosurvey/pkg/config"
)

// settingKeys maps the keys accepted by config get/set to their accessors.
var settingKeys = map[string]struct {
	get func(*config.Settings) string
	set func(*config.Settings, string) error
}{
	"server_url": {
		get: func(s *config.Settings) string { return s.ServerURL },
		set: func(s *config.Settings, v string) error { s.ServerURL = v; return nil },
	},
	"email": {
		get: func(s *config.Settings) string { return s.Email },
		set: func(s *config.Settings, v string) error { s.Email = v; return nil },
	},
	"identity_url": {
		get: func(s *config.Settings) string { return s.IdentityURL },
		set: func(s *config.Settings, v string) error { s.IdentityURL = v; return nil },
	},
	"identity_key": {
		get: func(s *config.Settings) string { return mask(s.IdentityKey) },
		set: func(s *config.Settings, v string) error { s.IdentityKey = v; return nil },
	},
	"drop_on_failure": {
		get: func(s *config.Settings) string { return strconv.FormatBool(s.DropOnFailure) },
		set: func(s *config.Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("drop_on_failure: %w", err)
			}
			s.DropOnFailure = b
			return nil
		},
	},
	"remember_me": {
		get: func(s *config.Settings) string { return strconv.FormatBool(s.RememberMe) },
	},
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage surveyctl configuration"}
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Show one or all settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				k, ok := settingKeys[args[0]]
				if !ok {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), k.get(cfg))
				return nil
			}
			names := make([]string, 0, len(settingKeys))
			for name := range settingKeys {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make(kv, 0, len(names))
			for _, name := range names {
				rows = append(rows, [2]string{name, settingKeys[name].get(cfg)})
			}
			return printOutput(cmd, rows)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := settingKeys[args[0]]
			if !ok || k.set == nil {
				return fmt.Errorf("setting %q cannot be changed", args[0])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := k.set(cfg, args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}
