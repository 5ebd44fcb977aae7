package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/blackbird-labs/punchd/internal/adapters/driven/config/file"
	"github.com/blackbird-labs/punchd/internal/core/domain"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the attendance service and credentials",
	Long: `Interactive setup for the attendance service connection.

Prompts for the service base URL, the OAuth client ID, and the token
pair. Tokens are read without echo and stored locally.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	if configStore == nil || tokenService == nil {
		return errors.New("setup services not configured")
	}

	reader := bufio.NewReader(os.Stdin)

	current, err := configStore.API()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cmd.Println("punchd setup")
	cmd.Println("============")
	cmd.Println()

	baseURL := promptDefault(cmd, reader, "Attendance service base URL", current.BaseURL)
	if baseURL == "" {
		return errors.New("base URL is required")
	}
	clientID := promptDefault(cmd, reader, "OAuth client ID", current.ClientID)

	if err := configStore.SaveAPI(file.APISettings{BaseURL: baseURL, ClientID: clientID}); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	cmd.Print("Access token: ")
	accessToken := readSecret(reader)
	cmd.Println()

	cmd.Print("Refresh token: ")
	refreshToken := readSecret(reader)
	cmd.Println()

	if accessToken == "" || refreshToken == "" {
		return errors.New("both tokens are required")
	}

	pair := domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := tokenService.SaveInitialTokens(context.Background(), pair); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	cmd.Println()
	cmd.Println("Setup complete. Run 'punchd schedule set' to configure automatic")
	cmd.Println("clock-in, then 'punchd run' to start the scheduler.")
	return nil
}

func promptDefault(cmd *cobra.Command, reader *bufio.Reader, label, current string) string {
	if current != "" {
		cmd.Printf("%s [%s]: ", label, current)
	} else {
		cmd.Printf("%s: ", label)
	}
	input := readLine(reader)
	if input == "" {
		return current
	}
	return input
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}
