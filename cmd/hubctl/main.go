package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/otservhub/hub/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	hubURL  string
	cfgFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "OTServHub CLI",
	Long: `hubctl is the command-line interface for OTServHub.

It allows you to browse and register game-server listings, verify website
ownership, and cast hype votes from the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.otservhub")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if hubURL == "" {
			hubURL = viper.GetString("hub_url")
		}
		if hubURL == "" {
			hubURL = "https://otservhub.com"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.otservhub/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&hubURL, "hub", "", "OTServHub base URL (default https://otservhub.com)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(hypeCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client, attaching the saved session token if present.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if token, err := loadToken(); err == nil && token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	return client.New(hubURL, opts...)
}

func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".otservhub", "token"), nil
}

func loadToken() (string, error) {
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate and store a session token",
	Long: `Login authenticates against the hub and stores the session token in
~/.otservhub/token (chmod 600) for subsequent commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		fmt.Print("Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		c, err := client.New(hubURL)
		if err != nil {
			return err
		}

		u, err := c.Login(context.Background(), email, string(pw))
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := saveToken(c.Token()); err != nil {
			return err
		}

		fmt.Printf("✓ Logged in as %s (%s)\n", u.Username, u.Email)
		return nil
	},
}

// ── servers ──────────────────────────────────────────────────────────────────

var (
	serversSearch string
	serversLimit  int
	serversFormat string
	serversMine   bool
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List game-server listings",
	Long: `Servers lists public listings, verified first.

  hubctl servers --search war --limit 10
  hubctl servers --mine            # your own listings (requires login)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		var servers []client.Server
		if serversMine {
			servers, err = c.MyServers(ctx)
		} else {
			servers, err = c.ListServers(ctx, serversSearch, serversLimit, 0)
		}
		if err != nil {
			return fmt.Errorf("list servers: %w", err)
		}

		if serversFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(servers)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSLUG\tADDRESS\tPVP\tHYPE\tONLINE\tVERIFIED")
		for _, s := range servers {
			online := "-"
			if s.IsOnline {
				online = fmt.Sprintf("%d", s.OnlineCount)
			}
			verified := ""
			if s.IsVerified {
				verified = "✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\t%d\t%s\t%s\n",
				s.Name, s.Slug, s.IPAddress, s.Port, s.PvPType, s.HypeScore, online, verified)
		}
		return w.Flush()
	},
}

func init() {
	serversCmd.Flags().StringVar(&serversSearch, "search", "", "Filter by name or description")
	serversCmd.Flags().IntVar(&serversLimit, "limit", 0, "Maximum number of results (0 = server default)")
	serversCmd.Flags().StringVar(&serversFormat, "format", "text", "Output format: text or json")
	serversCmd.Flags().BoolVar(&serversMine, "mine", false, "List only your own servers (requires login)")
}

// ── register ─────────────────────────────────────────────────────────────────

var (
	regName      string
	regIP        string
	regPort      int
	regVersion   string
	regWebsite   string
	regDesc      string
	regMapType   string
	regPvP       string
	regRate      string
	regSessionID string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new server listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		srv, err := c.RegisterServer(context.Background(), client.RegisterServerRequest{
			Name:        regName,
			IP:          regIP,
			Port:        regPort,
			Version:     regVersion,
			Website:     regWebsite,
			Description: regDesc,
			MapType:     regMapType,
			PvPType:     regPvP,
			Rate:        regRate,
			SessionID:   regSessionID,
		})
		if err != nil {
			return fmt.Errorf("register server: %w", err)
		}

		fmt.Printf("✓ Server registered\n\n")
		fmt.Printf("  Name: %s\n", srv.Name)
		fmt.Printf("  Slug: %s\n", srv.Slug)
		if srv.IsVerified {
			fmt.Printf("  Verified: yes\n")
		} else if regWebsite != "" {
			fmt.Printf("\nNext: hubctl verify %s to earn the verified badge\n", regWebsite)
		}
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&regName, "name", "", "Server name")
	registerCmd.Flags().StringVar(&regIP, "ip", "", "Game server IP or hostname")
	registerCmd.Flags().IntVar(&regPort, "port", 0, "Game port (default 7171)")
	registerCmd.Flags().StringVar(&regVersion, "version", "", "Client version (e.g. 8.6)")
	registerCmd.Flags().StringVar(&regWebsite, "website", "", "Server website URL")
	registerCmd.Flags().StringVar(&regDesc, "description", "", "Server description")
	registerCmd.Flags().StringVar(&regMapType, "map", "custom", "Map type: real or custom")
	registerCmd.Flags().StringVar(&regPvP, "pvp", "PVP", "PvP type: PVP, NO_PVP, PVP_ENFORCED, RETRO_PVP")
	registerCmd.Flags().StringVar(&regRate, "rate", "", "Experience rate (e.g. 50x)")
	registerCmd.Flags().StringVar(&regSessionID, "session", "", "Verified website session ID (from hubctl verify)")

	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("ip")
	_ = registerCmd.MarkFlagRequired("version")
	_ = registerCmd.MarkFlagRequired("website")
	_ = registerCmd.MarkFlagRequired("description")
	_ = registerCmd.MarkFlagRequired("rate")
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <website-url>",
	Short: "Verify ownership of a server website",
	Long: `Verify guides you through the website-ownership flow.

It opens a verification session, prints the meta tag to place in your site's
<head>, and checks for it when you confirm. Each session allows a limited
number of checks before it locks, so deploy the tag before confirming.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	websiteURL := args[0]
	ctx := context.Background()
	stdin := bufio.NewReader(os.Stdin)

	c, err := newClient()
	if err != nil {
		return err
	}

	// 1. Open a session.
	sess, err := c.StartVerification(ctx)
	if err != nil {
		return fmt.Errorf("start verification session: %w", err)
	}

	// 2. Print the meta-tag box.
	fmt.Println()
	fmt.Println("┌──────────────────────────────────────────────────────────────────────────────┐")
	fmt.Println("│  Add this tag inside your website's <head>:                                  │")
	fmt.Println("│                                                                              │")
	fmt.Printf("│  %-76s│\n", sess.MetaTag)
	fmt.Println("│                                                                              │")
	fmt.Println("│  Press Enter once the tag is live                                            │")
	fmt.Println("└──────────────────────────────────────────────────────────────────────────────┘")
	fmt.Println()

	// 3. Check on each confirmation until it passes or the session locks.
	for {
		stdin.ReadString('\n') //nolint:errcheck

		fmt.Printf("Checking %s ...\n", websiteURL)
		result, verifyErr := c.VerifyWebsite(ctx, websiteURL, sess.Token)
		if verifyErr == nil {
			fmt.Printf("\n✓ Website verified!\n\n")
			fmt.Printf("  Session: %s\n\n", sess.ID)
			fmt.Println("Next steps:")
			fmt.Printf("  hubctl register --session %s ...\n", sess.ID)
			return nil
		}
		if !errors.Is(verifyErr, client.ErrVerificationFailed) {
			return fmt.Errorf("verify website: %w", verifyErr)
		}

		fmt.Printf("✗ %s (attempt %d)\n", result.Reason, result.Attempts)
		if strings.Contains(result.Reason, "attempt limit reached") {
			return fmt.Errorf("session locked — start over with a new session once the tag is deployed")
		}
		fmt.Print("Fix the issue above, then press Enter to retry: ")
	}
}

// ── hype ─────────────────────────────────────────────────────────────────────

var hypeType string

var hypeCmd = &cobra.Command{
	Use:   "hype <server-id>",
	Short: "Cast a hype vote on a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		counts, err := c.Hype(context.Background(), args[0], strings.ToUpper(hypeType))
		if err != nil {
			return fmt.Errorf("hype: %w", err)
		}

		fmt.Printf("✓ Vote recorded\n\n")
		fmt.Printf("  Going:   %d\n", counts.Going)
		fmt.Printf("  Waiting: %d\n", counts.Waiting)
		fmt.Printf("  Maybe:   %d\n", counts.Maybe)
		fmt.Printf("  Total:   %d\n", counts.Total)
		return nil
	},
}

func init() {
	hypeCmd.Flags().StringVar(&hypeType, "type", "GOING", "Vote type: GOING, WAITING, MAYBE")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print hubctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hubctl %s\n", version)
	},
}
