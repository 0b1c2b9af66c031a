package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/logging"
	"github.com/flo-mic/osbctl/internal/report"
	"github.com/flo-mic/osbctl/internal/sbapi"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var reinit bool
	c := &cobra.Command{
		Use:   "init",
		Short: "Create or extend the environment catalog interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts, reinit)
		},
	}
	c.Flags().BoolVarP(&reinit, "reinit", "r", false, "Start a new catalog instead of adding to the existing one")
	return c
}

func runInit(cmd *cobra.Command, opts *rootOptions, reinit bool) error {
	s, err := config.LoadSettings()
	if err != nil {
		return err
	}
	path := s.EnvironmentsFile
	if opts.environments != "" {
		path = opts.environments
	}
	out := cmd.OutOrStdout()

	var profiles []config.EnvironmentProfile
	if _, err := os.Stat(path); err == nil && !reinit {
		existing, err := config.LoadCatalog(path)
		if err != nil {
			return fmt.Errorf("%w (run with --reinit to start over)", err)
		}
		profiles = existing.List()
		fmt.Fprintf(out, "Adding to %s (%d environment(s) so far).\n\n", path, len(profiles))
	} else {
		fmt.Fprintln(out, "Welcome to osbctl init. Let's describe the environments you manage.")
		fmt.Fprintln(out)
	}

	for {
		p, err := askProfile(profiles)
		if err != nil {
			return err
		}
		profiles = append(profiles, p)

		var testNow, more bool
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Test the connection to "+p.Name+" now?").
				Description("Needs the credential variable or file to be available.").
				Value(&testNow),
			huh.NewConfirm().
				Title("Add another environment?").
				Value(&more),
		)).Run(); err != nil {
			return err
		}
		if testNow {
			if err := testConnection(cmd.Context(), s, p); err != nil {
				fmt.Fprintln(out, report.Warning(fmt.Sprintf("%s: %v", p.Name, err)))
			} else {
				fmt.Fprintln(out, report.Success("connected to "+p.Name))
			}
		}
		if !more {
			break
		}
	}

	if _, err := config.NewCatalog(profiles); err != nil {
		return err
	}
	if err := config.SaveCatalog(path, profiles); err != nil {
		return err
	}
	fmt.Fprintln(out, report.Success(fmt.Sprintf("Wrote %d environment(s) to %s", len(profiles), path)))
	return nil
}

func askProfile(existing []config.EnvironmentProfile) (config.EnvironmentProfile, error) {
	var p config.EnvironmentProfile
	p.Group = "DEV"
	p.Username = "weblogic"

	groupOptions := make([]huh.Option[string], 0, len(config.Groups))
	for _, g := range config.Groups {
		groupOptions = append(groupOptions, huh.NewOption(g, g))
	}

	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Environment name").
			Description("Short and unique, e.g. DEV1 or PROD-EU").
			Value(&p.Name).
			Validate(func(s string) error {
				s = strings.TrimSpace(s)
				if s == "" {
					return errors.New("name cannot be empty")
				}
				for _, e := range existing {
					if e.Name == s {
						return fmt.Errorf("%s already exists", s)
					}
				}
				return nil
			}),
		huh.NewSelect[string]().
			Title("Group").
			Options(groupOptions...).
			Value(&p.Group),
		huh.NewInput().
			Title("Admin server URL").
			Description("e.g. https://osb-dev1.example.com:7002").
			Value(&p.Endpoint).
			Validate(func(s string) error {
				if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
					return errors.New("must start with http:// or https://")
				}
				return nil
			}),
		huh.NewInput().
			Title("Username").
			Value(&p.Username).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("username cannot be empty")
				}
				return nil
			}),
		huh.NewInput().
			Title("Password reference").
			Description("env:VAR, file:/path or a variable name. Passwords are never stored here.").
			Placeholder("env:OSB_DEV1_PASSWORD").
			Value(&p.Credential).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("a credential reference is required")
				}
				return nil
			}),
		huh.NewConfirm().
			Title("Skip TLS certificate verification?").
			Value(&p.Insecure),
	)).Run()
	p.Name = strings.TrimSpace(p.Name)
	return p, err
}

func testConnection(ctx context.Context, s *config.Settings, p config.EnvironmentProfile) error {
	log, err := logging.New(s.LogLevel, "")
	if err != nil {
		return err
	}
	defer log.Close()
	sess, err := sbapi.Dialer{Timeout: s.Timeout, TaskPoll: s.TaskPoll, Logger: log.Logger}.Dial(ctx, p)
	if err != nil {
		return err
	}
	return sess.Close()
}
