package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	calendarApp "github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/ics"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/setup"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/security"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	connectCalendars []string
	connectSource    string
	connectUsername  string
	connectToken     string
	connectCode      string
	connectApple     bool
)

var connectCmd = &cobra.Command{
	Use:   "connect <provider>",
	Short: "Connect a calendar provider",
	Long: `Connect a calendar provider for syncing.

Supported providers:
  google     - Google Calendar (OAuth2)
  microsoft  - Microsoft Outlook/365 (OAuth2)
  local      - an ICS file or URL, or a CalDAV server (with --username)

Examples:
  rendezvous providers connect google
  rendezvous providers connect microsoft --calendars work,AAMkAD...
  rendezvous providers connect local --source ~/Calendars/work.ics
  rendezvous providers connect local --source https://example.com/team.ics
  rendezvous providers connect local --apple --username me@icloud.com
  rendezvous providers connect local --source https://caldav.fastmail.com/dav/ --username me`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringSliceVar(&connectCalendars, "calendars", nil, "calendar IDs to read (default: primary)")
	connectCmd.Flags().StringVar(&connectSource, "source", "", "ICS file path or URL, or CalDAV endpoint (local provider)")
	connectCmd.Flags().StringVar(&connectUsername, "username", "", "CalDAV or feed username; the password is prompted")
	connectCmd.Flags().StringVar(&connectToken, "token", "", "pre-issued access token instead of the OAuth flow")
	connectCmd.Flags().StringVar(&connectCode, "code", "", "OAuth authorization code, skips the prompt")
	connectCmd.Flags().BoolVar(&connectApple, "apple", false, "use the iCloud CalDAV endpoint")
}

func runConnect(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireApp()
	if err != nil {
		return err
	}
	userID, err := app.UserID()
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	provider, err := calendarDomain.ParseProviderType(args[0])
	if err != nil {
		names := make([]string, 0, 3)
		for _, p := range calendarDomain.AllProviderTypes() {
			names = append(names, p.String())
		}
		return fmt.Errorf("unsupported provider: %s\nSupported: %s", args[0], strings.Join(names, ", "))
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	command := calendarApp.ConnectProviderCommand{
		UserID:      userID,
		Provider:    provider,
		CalendarIDs: connectCalendars,
		SourceURL:   connectSource,
		Username:    connectUsername,
		Secret:      connectToken,
	}

	switch {
	case provider.RequiresOAuth() && connectToken == "":
		if err := authorize(ctx, out, in, userID, provider); err != nil {
			return err
		}
	case provider == calendarDomain.ProviderLocal:
		if connectApple {
			command.SourceURL = setup.AppleCalDAVURL
		}
		if command.Username != "" && command.Secret == "" {
			password, err := readPassword(out, in)
			if err != nil {
				return err
			}
			command.Secret = password
		}
		if command.Username == "" && command.SourceURL != "" && !ics.IsURL(command.SourceURL) {
			path, err := security.ResolvePath(command.SourceURL)
			if err != nil {
				return fmt.Errorf("invalid --source: %w", err)
			}
			command.SourceURL = path
		}
	}

	conn, err := app.ConnectionService.Connect(ctx, command)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	fmt.Fprintf(out, "Connected %s. Calendars: %s\n", provider.DisplayName(), strings.Join(conn.Calendars(), ", "))
	fmt.Fprintln(out, "Run 'rendezvous sync' to fetch events.")
	return nil
}

func authorize(ctx context.Context, out io.Writer, in *bufio.Reader, userID uuid.UUID, provider calendarDomain.ProviderType) error {
	if oauth == nil {
		return errors.New("OAuth is not configured")
	}

	code := connectCode
	if code == "" {
		state := uuid.NewString()
		authURL, err := oauth.AuthURL(provider, state)
		if err != nil {
			return fmt.Errorf("%s OAuth not configured: %w", provider.DisplayName(), err)
		}
		fmt.Fprintf(out, "Visit this URL to authorize %s:\n%s\n", provider.DisplayName(), authURL)
		fmt.Fprintf(out, "\nState: %s\n", state)
		fmt.Fprint(out, "\nEnter the authorization code: ")

		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read code: %w", err)
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return errors.New("authorization code is required")
	}

	if err := oauth.Exchange(ctx, userID, provider, code); err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	return nil
}

// readPassword reads without echo from a terminal, else a line from in.
func readPassword(out io.Writer, in *bufio.Reader) (string, error) {
	fmt.Fprint(out, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(line)
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}
