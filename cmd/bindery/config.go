package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("wrote default config to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
