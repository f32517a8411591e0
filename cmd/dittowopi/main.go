// Command dittowopi serves WOPI CheckFileInfo, GetFile and PutFile for
// documents kept in an S3 bucket, so an online office editor can open and
// save them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "dittowopi",
	Short: "WOPI host bridge for documents stored in S3",
	Long: `
dittowopi exposes the WOPI host endpoints an online office editor needs
(CheckFileInfo, GetFile, PutFile) on top of an S3 bucket, and hands out
per-file access tokens through GET /access?path=<key>.

Configuration is read from $XDG_CONFIG_HOME/dittowopi/config.yaml (or the
file given with --config) and can be overridden with DITTOWOPI_* variables.
Run "dittowopi init" to write a commented default configuration.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dittowopi %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default $XDG_CONFIG_HOME/dittowopi/config.yaml)")
	rootCmd.AddCommand(startCmd, initCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
