package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvusHold/notify/internal/version"
)

var (
	cfgFile   string
	apiURL    string
	apiToken  string
	verbose   bool
	outputFmt string
)

// Config holds CLI configuration
type Config struct {
	APIURL   string `mapstructure:"api_url"`
	APIToken string `mapstructure:"api_token"`
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notify-cli",
	Short: "Notify CLI - event emission and notification feed tool",
	Long: `Notify CLI provides command-line access to the notification dispatch service.
Emit events, browse the catalog, read feeds and manage the recipient directory.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.notify-cli.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Notify API base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "bearer token (see cmd/seed)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, json)")

	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("api_token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.AddCommand(catalogCmd, emitCmd, feedCmd, membersCmd, settingsCmd, healthCmd, configCmd, versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".notify-cli")
	}

	viper.SetEnvPrefix("NOTIFY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	if apiURL == "" {
		apiURL = viper.GetString("api_url")
	}
	if apiToken == "" {
		apiToken = viper.GetString("api_token")
	}
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	apiURL = strings.TrimRight(apiURL, "/")
}

func client() *NotifyClient { return NewClient(apiURL, apiToken) }

func printer() *Printer { return &Printer{Out: os.Stdout, Format: outputFmt} }

// Catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List registered event types",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := client().Catalog()
		if err != nil {
			return err
		}
		return printer().Catalog(entries)
	},
}

// Emit
var emitOpts struct {
	priority   string
	dedupeKey  string
	audience   string
	users      []string
	channels   []string
	entityID   string
	entityType string
	title      string
	body       string
	meta       map[string]string
	wait       bool
}

var emitCmd = &cobra.Command{
	Use:   "emit [event-type]",
	Short: "Emit a domain event",
	Long: `Emit a domain event for the token's tenant. Without --wait the server queues
the event and answers 202; with --wait it dispatches synchronously and returns the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := buildEmitRequest(args[0])
		resp, err := client().Emit(req, emitOpts.wait)
		if err != nil {
			return err
		}
		return printer().Emit(resp)
	},
}

func buildEmitRequest(eventType string) EmitRequest {
	req := EmitRequest{
		EventType:  eventType,
		Priority:   emitOpts.priority,
		DedupeKey:  emitOpts.dedupeKey,
		Channels:   emitOpts.channels,
		EntityID:   emitOpts.entityID,
		EntityType: emitOpts.entityType,
		Title:      emitOpts.title,
		Body:       emitOpts.body,
	}
	if emitOpts.audience != "" || len(emitOpts.users) > 0 {
		scope := emitOpts.audience
		if scope == "" {
			scope = "specific_users"
		}
		req.Audience = &Audience{Scope: scope, UserIDs: emitOpts.users}
	}
	if len(emitOpts.meta) > 0 {
		req.Metadata = make(map[string]any, len(emitOpts.meta))
		for k, v := range emitOpts.meta {
			req.Metadata[k] = v
		}
	}
	return req
}

func init() {
	f := emitCmd.Flags()
	f.StringVar(&emitOpts.priority, "priority", "", "low, medium, high or critical (default from catalog)")
	f.StringVar(&emitOpts.dedupeKey, "dedupe-key", "", "suppress repeats of the same key within the dedupe window")
	f.StringVar(&emitOpts.audience, "audience", "", "admins, admins_and_assistants or specific_users")
	f.StringSliceVar(&emitOpts.users, "users", nil, "user ids for specific_users")
	f.StringSliceVar(&emitOpts.channels, "channels", nil, "delivery channels (in_app, email, push, sms)")
	f.StringVar(&emitOpts.entityID, "entity-id", "", "id of the entity the event concerns")
	f.StringVar(&emitOpts.entityType, "entity-type", "", "type of the entity the event concerns")
	f.StringVar(&emitOpts.title, "title", "", "notification title")
	f.StringVar(&emitOpts.body, "body", "", "notification body")
	f.StringToStringVar(&emitOpts.meta, "meta", nil, "metadata key=value pairs")
	f.BoolVar(&emitOpts.wait, "wait", false, "dispatch synchronously and print the outcome")
}

// Feed
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Read the caller's notification feed",
}

var feedLimit int

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := client().Feed(feedLimit)
		if err != nil {
			return err
		}
		return printer().Feed(feed)
	},
}

var feedUnreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show the unread count",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := client().UnreadCount()
		if err != nil {
			return err
		}
		return printer().Count("unread", n)
	},
}

var feedReadCmd = &cobra.Command{
	Use:   "read [notification-id]",
	Short: "Mark one notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().MarkRead(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Notification %s marked as read\n", args[0])
		return nil
	},
}

var feedReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every unread notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := client().MarkAllRead()
		if err != nil {
			return err
		}
		return printer().Count("marked", n)
	},
}

func init() {
	feedListCmd.Flags().IntVar(&feedLimit, "limit", 0, "page size (default from server)")
	feedCmd.AddCommand(feedListCmd, feedUnreadCmd, feedReadCmd, feedReadAllCmd)
}

// Directory members
var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage the tenant's recipient directory",
}

var memberAddOpts struct {
	name  string
	email string
	role  string
}

var membersAddCmd = &cobra.Command{
	Use:   "add [user-id]",
	Short: "Add a directory member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := client().AddMember(args[0], memberAddOpts.name, memberAddOpts.email, memberAddOpts.role)
		if err != nil {
			return err
		}
		return printer().Members([]Member{m})
	},
}

var memberListOpts MemberQuery

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List directory members",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := client().ListMembers(memberListOpts)
		if err != nil {
			return err
		}
		return printer().MemberPage(page)
	},
}

var membersDeactivateCmd = &cobra.Command{
	Use:   "deactivate [user-id]",
	Short: "Deactivate a directory member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().DeactivateMember(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Member %s deactivated\n", args[0])
		return nil
	},
}

func init() {
	membersAddCmd.Flags().StringVar(&memberAddOpts.name, "name", "", "display name")
	membersAddCmd.Flags().StringVar(&memberAddOpts.email, "email", "", "email address")
	membersAddCmd.Flags().StringVar(&memberAddOpts.role, "role", "", "admin, admin-assistant, staff or resident")
	_ = membersAddCmd.MarkFlagRequired("role")

	membersListCmd.Flags().StringVar(&memberListOpts.Query, "q", "", "search by name or email")
	membersListCmd.Flags().StringVar(&memberListOpts.Role, "role", "", "filter by role")
	membersListCmd.Flags().IntVar(&memberListOpts.Active, "active", -1, "1 active only, 0 inactive only, -1 any")
	membersListCmd.Flags().IntVar(&memberListOpts.Page, "page", 1, "page number")
	membersListCmd.Flags().IntVar(&memberListOpts.PageSize, "page-size", 20, "page size")

	membersCmd.AddCommand(membersAddCmd, membersListCmd, membersDeactivateCmd)
}

// Settings
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Tenant settings management",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show tenant settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := client().GetSettings()
		if err != nil {
			return err
		}
		return printer().Settings(s)
	},
}

var settingsSetOpts struct {
	emitLimit  int
	emitWindow string
	feedLimit  int
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update tenant settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var u SettingsUpdate
		if cmd.Flags().Changed("emit-limit") {
			u.EmitRateLimit = &settingsSetOpts.emitLimit
		}
		if cmd.Flags().Changed("emit-window") {
			u.EmitRateWindow = &settingsSetOpts.emitWindow
		}
		if cmd.Flags().Changed("feed-limit") {
			u.FeedLimit = &settingsSetOpts.feedLimit
		}
		if u.EmitRateLimit == nil && u.EmitRateWindow == nil && u.FeedLimit == nil {
			return fmt.Errorf("nothing to update: pass --emit-limit, --emit-window or --feed-limit")
		}
		if err := client().UpdateSettings(u); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Settings updated")
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().IntVar(&settingsSetOpts.emitLimit, "emit-limit", 0, "events accepted per window")
	settingsSetCmd.Flags().StringVar(&settingsSetOpts.emitWindow, "emit-window", "", "rate limit window, e.g. 1m")
	settingsSetCmd.Flags().IntVar(&settingsSetOpts.feedLimit, "feed-limit", 0, "feed page size")
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
}

// Health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check API health",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := client().Health()
		if err != nil {
			return err
		}
		return printer().Health(h)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, version.String())
	},
}

// Configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  "Initialize CLI configuration with interactive prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func initializeConfig() error {
	fmt.Println("Notify CLI Configuration Setup")
	fmt.Println("==============================")

	var config Config

	fmt.Print("Notify API URL [http://localhost:8080]: ")
	var url string
	_, _ = fmt.Scanln(&url)
	if url == "" {
		url = "http://localhost:8080"
	}
	config.APIURL = url

	fmt.Print("API Token: ")
	var token string
	_, _ = fmt.Scanln(&token)
	config.APIToken = token

	viper.Set("api_url", config.APIURL)
	viper.Set("api_token", config.APIToken)

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	configPath := filepath.Join(home, ".notify-cli.yaml")
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n", configPath)
	return nil
}

func showConfig() error {
	fmt.Println("Current Configuration:")
	fmt.Printf("API URL: %s\n", apiURL)
	fmt.Printf("API Token: %s\n", maskToken(apiToken))
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	}
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func logVerbose(format string, args ...interface{}) {
	if verbose {
		log.Printf("[VERBOSE] "+format, args...)
	}
}
