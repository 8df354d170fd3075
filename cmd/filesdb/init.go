package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb/internal/platform"
)

const defaultConfig = `# filesdb configuration
adapter: fs
path: .
transport: stdio
addr: ":8080"
log_level: info
`

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a filesdb store in the current directory",
	Long:  `Create the .filesdb system directory and a default filesdb.yaml.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}

		if _, err := platform.OpenSpace(context.Background(), cwd, platform.WithDevSafety(false)); err != nil {
			fatal("Failed to initialize store", err)
		}

		cfgPath := filepath.Join(cwd, platform.ConfigFileName)
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := os.WriteFile(cfgPath, []byte(defaultConfig), 0644); err != nil {
				fatal("Failed to write config", err)
			}
		}

		fmt.Println("Initialized filesdb store in", cwd)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
