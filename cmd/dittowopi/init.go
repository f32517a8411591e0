package main

import (
	"fmt"

	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `
Writes a configuration file with every default filled in. Without --config
the file goes to $XDG_CONFIG_HOME/dittowopi/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = config.GetDefaultConfigPath()
		}

		written, err := config.InitConfigAt(path, forceInit)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration written to %s\n", written)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
}
