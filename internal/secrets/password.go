package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

const (
	KeyringService = "jobpipe"

	// EnvIMAPPassword is read when the keychain has no entry, e.g. on
	// headless hosts where the password comes from a .env file.
	EnvIMAPPassword = "JOBPIPE_IMAP_PASSWORD"
)

var ErrNoPassword = errors.New("IMAP password not found (set it with `engine secrets set-imap` or " + EnvIMAPPassword + ")")

func IMAPPassword(ec config.Email) (string, error) {
	if acct := IMAPKeyringAccount(ec); acct != "" {
		pw, err := keyring.Get(KeyringService, acct)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := strings.TrimSpace(os.Getenv(EnvIMAPPassword)); pw != "" {
		return pw, nil
	}
	return "", ErrNoPassword
}

func SetIMAPPassword(ec config.Email, password string) error {
	acct := IMAPKeyringAccount(ec)
	if acct == "" {
		return errors.Wrap(domain.ErrInvalidInput, "email.username and email.imap_host are required")
	}
	if strings.TrimSpace(password) == "" {
		return errors.Wrap(domain.ErrInvalidInput, "password is empty")
	}
	return errors.Wrap(keyring.Set(KeyringService, acct, password), "keyring set")
}

func DeleteIMAPPassword(ec config.Email) error {
	acct := IMAPKeyringAccount(ec)
	if acct == "" {
		return errors.Wrap(domain.ErrInvalidInput, "email.username and email.imap_host are required")
	}
	err := keyring.Delete(KeyringService, acct)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return errors.Wrap(err, "keyring delete")
}

// IMAPKeyringAccount names the keychain entry for a mailbox, or "" when
// the mailbox is not configured.
func IMAPKeyringAccount(ec config.Email) string {
	user, host := strings.TrimSpace(ec.Username), strings.TrimSpace(ec.IMAPHost)
	if user == "" || host == "" {
		return ""
	}
	return fmt.Sprintf("jobpipe:imap:%s@%s", user, host)
}
