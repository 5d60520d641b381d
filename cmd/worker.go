package cmd

import (
	"github.com/spf13/cobra"
	"zoom-ingest/config"
	server2 "zoom-ingest/server"
)

func worker(config *config.Config) *cobra.Command {
	var drain bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "start transfer worker",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunWorker(config, drain)
		},
	}
	cmd.Flags().BoolVar(&drain, "drain", false, "process currently queued jobs, then exit")
	return cmd
}
