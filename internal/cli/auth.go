package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	outfit "github.com/Mallikarjun30/OutfitSuggestion"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in with email and password. The token and profile are stored in
the session store and reused by later commands.

The password is read from the first line of stdin unless --password is
given.

Examples:
  outfitctl login --email you@example.com
  echo "$PASSWORD" | outfitctl login --email you@example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `Create an account. On success you are signed in.

Examples:
  outfitctl register --email you@example.com --name "Ada Lovelace"
  outfitctl register --email you@example.com --name Ada --skin-tone olive --gender female`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password (read from stdin if empty)")
	_ = loginCmd.MarkFlagRequired("email")

	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("password", "", "account password (read from stdin if empty)")
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("skin-tone", "", "skin tone (fair, medium, olive, brown, dark)")
	registerCmd.Flags().String("gender", "", "gender")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// readPassword returns --password or the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	password = strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return "", errors.New("password is required")
	}
	return password, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := client.Session.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(user)
	}
	fmt.Fprintf(stdout, "Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	skinTone, _ := cmd.Flags().GetString("skin-tone")
	gender, _ := cmd.Flags().GetString("gender")

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := client.Session.Register(cmd.Context(), outfit.RegisterRequest{
		Email:    email,
		Password: password,
		Name:     name,
		SkinTone: skinTone,
		Gender:   gender,
	})
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(user)
	}
	fmt.Fprintf(stdout, "Registered and logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if !client.Session.IsAuthenticated() {
		fmt.Fprintln(stdout, "Not logged in")
		return nil
	}
	if err := client.Session.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Logged out")
	return nil
}

type whoami struct {
	User           *outfit.User `json:"user"`
	TokenExpiresAt *time.Time   `json:"token_expires_at,omitempty"`
}

func runWhoami(cmd *cobra.Command, args []string) error {
	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	out := whoami{User: client.Session.User()}
	if exp, ok := client.Session.TokenExpiry(); ok {
		out.TokenExpiresAt = &exp
	}

	if structured() {
		return printStructured(out)
	}
	printUser(out.User)
	if out.TokenExpiresAt != nil {
		fmt.Fprintf(stdout, "Session expires: %s\n", relTime(*out.TokenExpiresAt))
	}
	return nil
}

func printUser(u *outfit.User) {
	fmt.Fprintf(stdout, "ID:        %d\n", u.ID)
	fmt.Fprintf(stdout, "Name:      %s\n", u.Name)
	fmt.Fprintf(stdout, "Email:     %s\n", u.Email)
	fmt.Fprintf(stdout, "Skin tone: %s\n", derefOr(u.SkinTone))
	fmt.Fprintf(stdout, "Gender:    %s\n", derefOr(u.Gender))
	if u.CreatedAt > 0 {
		fmt.Fprintf(stdout, "Joined:    %s\n", relTime(u.Created()))
	}
}
