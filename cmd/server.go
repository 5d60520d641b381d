package cmd

import (
	"github.com/spf13/cobra"
	"zoom-ingest/config"
	server2 "zoom-ingest/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start webhook http server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
