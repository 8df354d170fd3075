package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of filesdb",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("filesdb version %s\n", filesdb.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
