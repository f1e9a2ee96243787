// Package provider implements the provider commands.
package provider

import (
	"context"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// OAuthFlow runs the authorization code flow of the OAuth providers.
type OAuthFlow interface {
	AuthURL(provider calendarDomain.ProviderType, state string) (string, error)
	Exchange(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType, code string) error
}

var oauth OAuthFlow

// SetOAuthFlow wires the OAuth flow used by connect.
func SetOAuthFlow(f OAuthFlow) {
	oauth = f
}

// Cmd is the providers command group
var Cmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"provider"},
	Short:   "Manage calendar providers",
	Long:    `Connect, list and disconnect the calendars rendezvous reads from.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(connectCmd)
	Cmd.AddCommand(disconnectCmd)
}
