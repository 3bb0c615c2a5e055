package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the devquote version. With --verbose, also print the commit,
build date, Go version and platform. -o json|yaml prints every field.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var versionVerbose bool

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "show detailed version information")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := version.GetInfo()
	if textOutput() && !versionVerbose {
		return format(cmd, info.String())
	}
	return format(cmd, info)
}
