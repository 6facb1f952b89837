/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP inspection API",
	Long: `Start the FreyjaWire HTTP API. It lists containers and reads, writes and
deletes values through the same pipeline the CLI uses. Prometheus metrics
are served at /metrics.

Examples:
  freyjawire serve
  freyjawire serve --config ./freyjawire.yaml --port 9200 --bind 0.0.0.0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverConfig := container.ServerConfig()
		if cmd.Flags().Changed("port") {
			serverConfig.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			serverConfig.Bind, _ = cmd.Flags().GetString("bind")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("Starting FreyjaWire server on %s:%d\n", serverConfig.Bind, serverConfig.Port)
		cmd.Printf("Data directory: %s\n", container.Config().DataDir)

		starter := container.GetServerFactory().CreateServerStarter()
		return starter.StartServer(ctx, container.Deps(), serverConfig)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides config)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to (overrides config)")
}
