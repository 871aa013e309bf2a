package seeders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedAdmin_RequiresCredentials(t *testing.T) {
	tests := []AdminAccount{
		{},
		{Email: "admin@example.com"},
		{Password: "Str0ng-Passw0rd!"},
		{Email: "   ", Password: "Str0ng-Passw0rd!"},
	}

	for _, admin := range tests {
		err := New(nil, admin).Run()
		require.ErrorIs(t, err, ErrAdminNotConfigured)
	}
}
