package secrets

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

func TestIMAPPassword_KeyringThenEnv(t *testing.T) {
	keyring.MockInit()
	ec := config.Email{Username: "me@example.com", IMAPHost: "imap.example.com"}

	t.Setenv(EnvIMAPPassword, "")
	_, err := IMAPPassword(ec)
	assert.ErrorIs(t, err, ErrNoPassword)

	t.Setenv(EnvIMAPPassword, "from-env")
	pw, err := IMAPPassword(ec)
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)

	require.NoError(t, SetIMAPPassword(ec, "from-keyring"))
	pw, err = IMAPPassword(ec)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", pw)

	require.NoError(t, DeleteIMAPPassword(ec))
	require.NoError(t, DeleteIMAPPassword(ec), "deleting twice is fine")
}

func TestSetIMAPPassword_Validation(t *testing.T) {
	keyring.MockInit()
	err := SetIMAPPassword(config.Email{}, "pw")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	err = SetIMAPPassword(config.Email{Username: "u", IMAPHost: "h"}, "  ")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestIMAPKeyringAccount(t *testing.T) {
	assert.Equal(t, "jobpipe:imap:u@h", IMAPKeyringAccount(config.Email{Username: "u", IMAPHost: "h"}))
	assert.Empty(t, IMAPKeyringAccount(config.Email{Username: "u"}))
}
