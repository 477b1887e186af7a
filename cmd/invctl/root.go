package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/factoryinv/internal/client"
	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

const defaultServer = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:   "invctl",
	Short: "Factory inventory command-line client",
	Long: `invctl talks to a running inventory server.

The server URL and API key come from --server and --api-key, or from
INVCTL_SERVER and INVCTL_API_KEY (a .env file in the working directory is read).`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadEnv)

	rootCmd.PersistentFlags().String("server", "", "server base URL (default "+defaultServer+")")
	rootCmd.PersistentFlags().String("api-key", "", "API key sent as X-API-Key")
	rootCmd.PersistentFlags().Duration("timeout", client.DefaultTimeout, "HTTP timeout (0 disables it)")
}

// loadEnv reads .env without overriding variables already set.
func loadEnv() {
	_ = godotenv.Load()
}

func newClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	apiKey, _ := cmd.Flags().GetString("api-key")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if server == "" {
		server = os.Getenv("INVCTL_SERVER")
	}
	if server == "" {
		server = defaultServer
	}
	if apiKey == "" {
		apiKey = os.Getenv("INVCTL_API_KEY")
	}

	c := client.New(server, apiKey)
	c.HTTP.Timeout = timeout
	return c
}

// addQueryFlags registers the search parameters shared by list and export.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("search", "s", "", "keyword matched against every text column")
	cmd.Flags().String("previous-factory", "", "exact previous factory code")
	cmd.Flags().String("product-factory", "", "exact product factory code")
}

func queryFromFlags(cmd *cobra.Command) inventory.Query {
	search, _ := cmd.Flags().GetString("search")
	prev, _ := cmd.Flags().GetString("previous-factory")
	prod, _ := cmd.Flags().GetString("product-factory")
	return inventory.Query{
		SearchKeyword:       search,
		PreviousFactoryCode: prev,
		ProductFactoryCode:  prod,
	}
}
