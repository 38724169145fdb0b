package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:           "server",
		Short:         "VDI assignment dashboard",
		Long:          "Tracks who holds which virtual desktop, brokers hand-over requests and pushes live updates to every open dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(serve, newMigrateCmd(), newHashPasswordCmd(), newVersionCmd())
	return root
}
