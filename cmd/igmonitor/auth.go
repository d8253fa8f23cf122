package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igmonitor/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Instagram session used for checks",
	Long: `Manage the stored Instagram session credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store Instagram session credentials securely",
	Long: `Store the session cookies the monitor uses for upstream checks.

To get these values:
1. Log into Instagram in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Copy the sessionid and csrftoken values`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credentials with sensitive parts masked",
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	chain, err := auth.NewChain()
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}

	fmt.Println("Enter your cookie values (hidden as you type):")
	fmt.Println()

	fmt.Print("sessionid cookie value: ")
	sessionID, err := readSecret()
	if err != nil {
		return fmt.Errorf("read session ID: %w", err)
	}
	if len(sessionID) < 20 {
		return fmt.Errorf("that does not look like a valid sessionid, it should be a long string")
	}

	fmt.Print("\ncsrftoken cookie value: ")
	csrfToken, err := readSecret()
	if err != nil {
		return fmt.Errorf("read CSRF token: %w", err)
	}
	if len(csrfToken) < 20 || len(csrfToken) > 50 {
		return fmt.Errorf("that does not look like a valid csrftoken, it should be around 32 characters")
	}

	fmt.Print("\nUser agent (optional, press Enter for default): ")
	reader := bufio.NewReader(os.Stdin)
	userAgent, _ := reader.ReadString('\n')

	if err := chain.Save(&auth.Credentials{
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: strings.TrimSpace(userAgent),
	}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Println("\nCredentials stored. Run 'igmonitor serve' to start monitoring.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	chain, err := auth.NewChain()
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}
	if err := chain.Clear(); err != nil {
		return fmt.Errorf("remove credentials: %w", err)
	}
	fmt.Println("Credentials removed.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	chain, err := auth.NewChain()
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}
	creds, err := chain.Load()
	if err != nil {
		fmt.Println("No credentials stored. Run 'igmonitor auth login'.")
		return nil
	}

	masked := creds.Masked()
	fmt.Println("Stored Instagram session:")
	fmt.Printf("  session ID:  %s\n", masked.SessionID)
	fmt.Printf("  CSRF token:  %s\n", masked.CSRFToken)
	if masked.UserAgent != "" {
		fmt.Printf("  user agent:  %s\n", masked.UserAgent)
	}
	fmt.Printf("  last stored: %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
	return nil
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
