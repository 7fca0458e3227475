package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/cli"
	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/config"
)

func newSetPasswordCmd(configFn func() string, outputFn func() *cli.Output) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Store the Octane password in the OS keyring (reads it from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				cfg, err := config.Read(config.New(configFn()))
				if err != nil {
					return err
				}
				username = cfg.Server.Username
			}
			if username == "" {
				return errors.New("username is required (--username or server.username)")
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				return errors.New("password is empty")
			}
			password := strings.TrimRight(scanner.Text(), "\r\n")
			if password == "" {
				return errors.New("password is empty")
			}

			store, err := config.OpenKeyring()
			if err != nil {
				return err
			}
			if err := store.SetPassword(username, password); err != nil {
				return err
			}

			outputFn().Success("password stored for " + username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Octane user (default: server.username from config)")

	return cmd
}
