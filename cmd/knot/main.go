// Command knot is the registry's command-line client: account management,
// namespace and package administration, and the publish/download flow,
// talking to a knotd server over its JSON API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "knot:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "knot",
		Short:         "A client for the knot package registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("registry", "", "registry base URL (overrides the saved config)")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newAccountCmd(),
		newListCmd(),
		newInfoCmd(),
		newDownloadCmd(),
		newPublishCmd(),
		newUnpublishCmd(),
		newPkgCmd(),
		newTagCmd(),
		newNamespaceCmd(),
	)
	return root
}
