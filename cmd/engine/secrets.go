package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/secrets"
)

var secretsPasswordFlag string

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage the IMAP password in the OS keychain",
}

var setIMAPCmd = &cobra.Command{
	Use:   "set-imap",
	Short: "Store the IMAP password for email.username@email.imap_host",
	Long: `Store the IMAP password in the OS keychain. The password is read from
--password, or from the first line of stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, err := emailConfig()
		if err != nil {
			return err
		}
		pw := secretsPasswordFlag
		if pw == "" {
			pterm.Info.Printf("IMAP password for %s: ", secrets.IMAPKeyringAccount(ec))
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return errors.Wrap(err, "read password")
			}
			pw = strings.TrimRight(line, "\r\n")
		}
		if err := secrets.SetIMAPPassword(ec, pw); err != nil {
			return err
		}
		pterm.Success.Printf("stored password for %s\n", secrets.IMAPKeyringAccount(ec))
		return nil
	},
}

var deleteIMAPCmd = &cobra.Command{
	Use:   "delete-imap",
	Short: "Remove the stored IMAP password",
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, err := emailConfig()
		if err != nil {
			return err
		}
		if err := secrets.DeleteIMAPPassword(ec); err != nil {
			return err
		}
		pterm.Success.Println("IMAP password removed")
		return nil
	},
}

func emailConfig() (config.Email, error) {
	path, err := configPath()
	if err != nil {
		return config.Email{}, err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return config.Email{}, err
	}
	return cfg.Email, nil
}

func init() {
	setIMAPCmd.Flags().StringVar(&secretsPasswordFlag, "password", "", "password (default: read from stdin)")
	secretsCmd.AddCommand(setIMAPCmd, deleteIMAPCmd)
}
