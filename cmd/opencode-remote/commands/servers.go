package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/opencode-remote/internal/config"
)

var (
	addName        string
	addUsername    string
	addPassword    string
	addAutoConnect bool
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage the configured OpenCode servers",
}

var serversAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a server",
	Long: `Register an OpenCode server by URL. Credentials may reference
environment variables as {env:VAR}; they are resolved at connect time, not
stored in plain text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := serverStore()
		cfg, err := store.Add(config.ServerConfig{
			URL:         args[0],
			Name:        addName,
			Username:    addUsername,
			Password:    addPassword,
			AutoConnect: addAutoConnect,
		})
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", cfg.DisplayName(), cfg.ID)
		return nil
	},
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		configs, err := serverStore().List()
		if err != nil {
			return err
		}
		if len(configs) == 0 {
			fmt.Println("no servers configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tURL\tAUTO")
		for _, cfg := range configs {
			auto := ""
			if cfg.AutoConnect {
				auto = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cfg.ID, cfg.Name, cfg.URL, auto)
		}
		return w.Flush()
	},
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove <id|name|url>",
	Short: "Remove a registered server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := serverStore()
		cfg, err := store.Resolve(args[0])
		if err != nil {
			return err
		}
		if err := store.Remove(cfg.ID); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", cfg.DisplayName())
		return nil
	},
}

func init() {
	serversAddCmd.Flags().StringVar(&addName, "name", "", "Friendly name")
	serversAddCmd.Flags().StringVar(&addUsername, "username", "", "Basic auth username")
	serversAddCmd.Flags().StringVar(&addPassword, "password", "", "Basic auth password (supports {env:VAR})")
	serversAddCmd.Flags().BoolVar(&addAutoConnect, "auto-connect", false, "Connect automatically when serve starts")

	serversCmd.AddCommand(serversAddCmd)
	serversCmd.AddCommand(serversListCmd)
	serversCmd.AddCommand(serversRemoveCmd)
}

func serverStore() *config.Store {
	return config.NewStore(config.GetPaths().ServersPath())
}
