// Package wiretapcmder
package wiretapcmder

import (
	versioncmder "github.com/papercomputeco/wiretap/cmd/version"
	configcmder "github.com/papercomputeco/wiretap/cmd/wiretap/config"
	relaycmder "github.com/papercomputeco/wiretap/cmd/wiretap/relay"
	tailcmder "github.com/papercomputeco/wiretap/cmd/wiretap/tail"
	"github.com/spf13/cobra"
)

const wiretapLongDesc string = `Wiretap is a toolkit for Server-Sent Event streams.

Follow, record, and relay SSE streams:
  wiretap tail <url>     Follow a stream and print events as they arrive
  wiretap relay          Re-serve an upstream stream to many subscribers
  wiretap config         Manage persistent configuration`

const wiretapShortDesc string = "Wiretap - SSE stream toolkit"

func NewWiretapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wiretap",
		Short: wiretapShortDesc,
		Long:  wiretapLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .wiretap/ directory location")

	// Add subcommands
	cmd.AddCommand(tailcmder.NewTailCmd())
	cmd.AddCommand(relaycmder.NewRelayCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
