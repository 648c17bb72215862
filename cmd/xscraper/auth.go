package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xscraper/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage X login credentials",
	Long: `Manage stored X (Twitter) login credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store X credentials securely",
	Long: `Store X login credentials in the system keychain or an encrypted file.

You will be prompted for:
  - Username (if not provided)
  - Password (hidden as you type)
  - Email (used to answer the login confirmation challenge)
  - User Agent (optional, press Enter for default)`,
	Example: `  # Interactive login
  xscraper auth login

  # Login with username
  xscraper auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials for an account.

When no username is given, removes the only stored account after
confirmation.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts with sensitive values masked.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) == 1 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		fmt.Print("Username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to read username:", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		fmt.Fprintln(os.Stderr, "username is required")
		os.Exit(1)
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Password: ")
	password, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "\nfailed to read password:", err)
		os.Exit(1)
	}
	fmt.Println()
	if password == "" {
		fmt.Fprintln(os.Stderr, "password is required")
		os.Exit(1)
	}

	fmt.Print("Email: ")
	emailInput, _ := reader.ReadString('\n')
	email := strings.TrimSpace(emailInput)
	if email == "" {
		fmt.Fprintln(os.Stderr, "email is required for the login confirmation challenge")
		os.Exit(1)
	}

	fmt.Print("User Agent (press Enter to use default): ")
	uaInput, _ := reader.ReadString('\n')
	userAgent := strings.TrimSpace(uaInput)

	account := &auth.Account{
		Username:     username,
		Password:     password,
		Email:        email,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}

	if err := manager.Store(account); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("Credentials stored for '%s'\n", username)
	fmt.Println("\nCollect posts with:")
	fmt.Printf("  $ xscraper collect <handle> --account %s\n", username)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	var username string
	if len(args) == 1 {
		username = strings.TrimSpace(args[0])
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			fmt.Fprintln(os.Stderr, "no stored accounts found")
			os.Exit(1)
		}
		if len(accounts) > 1 {
			fmt.Fprintln(os.Stderr, "multiple accounts stored, specify one:")
			for _, account := range accounts {
				fmt.Fprintf(os.Stderr, "  xscraper auth logout %s\n", account.Username)
			}
			os.Exit(1)
		}

		username = accounts[0].Username
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Remove account '%s'? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	if err := manager.Delete(username); err != nil {
		fmt.Fprintln(os.Stderr, "failed to remove account:", err)
		os.Exit(1)
	}
	fmt.Println("Account removed:", username)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list accounts:", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Run 'xscraper auth login' to add one.")
		return
	}

	fmt.Printf("Stored accounts (%d):\n\n", len(accounts))
	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("  %s\n", masked.Username)
		fmt.Printf("    Email:    %s\n", masked.Email)
		fmt.Printf("    Password: %s\n", masked.Password)
		if !masked.LastModified.IsZero() {
			fmt.Printf("    Modified: %s\n", masked.LastModified.Format(time.RFC3339))
		}
		fmt.Println()
	}
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(password)), nil
	}

	// Piped input
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
