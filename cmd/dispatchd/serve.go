package main

import (
	"github.com/spf13/cobra"

	"github.com/stskit/dispatch/gtfsrt"
	"github.com/stskit/dispatch/server"
)

func serveCmd() *cobra.Command {
	var addr, port string
	var gtfsEnabled bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher's websocket hub and REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			server.InitializeLogger(logger)

			engine, _ := buildEngine(logger)

			var publisher *gtfsrt.Publisher
			if gtfsEnabled {
				publisher = gtfsrt.New()
			}

			server.Run(engine, publisher, addr, port)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "address to bind")
	cmd.Flags().StringVar(&port, "port", server.DefaultPort, "port to bind")
	cmd.Flags().BoolVar(&gtfsEnabled, "gtfs-rt", true, "enable the GTFS-Realtime feed endpoint")
	return cmd
}
