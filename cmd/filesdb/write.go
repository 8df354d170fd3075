package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb/pkg/core"
)

var (
	writeFlags   storeFlags
	writeData    string
	writeIfMatch string
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write [path]",
	Short: "Write a document",
	Long: `Write JSON content to a document and print the new version token.
With --if-match the write only succeeds if the document still has that
token; otherwise it fails with a conflict and exit status 2.
Use --data - to read the content from stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data := []byte(writeData)
		if writeData == "-" {
			var err error
			data, err = io.ReadAll(os.Stdin)
			if err != nil {
				fatal("Failed to read stdin", err)
			}
		}
		if !json.Valid(data) {
			fatal("Invalid --data", fmt.Errorf("not valid JSON"))
		}

		ctx := context.Background()
		store := writeFlags.openStore(ctx)
		if code := runWrite(ctx, store, args[0], data, writeIfMatch, os.Stdout, os.Stderr); code != 0 {
			os.Exit(code)
		}
	},
}

// runWrite writes data and returns the process exit status: 0 on success,
// 2 on conflict, 1 otherwise. It closes store before returning.
func runWrite(ctx context.Context, store *core.Store, path string, data []byte, ifMatch string, stdout, stderr io.Writer) int {
	defer store.Close()

	res, err := store.Swap(ctx, path, json.RawMessage(data), ifMatch)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to write document: %v\n", err)
		return 1
	}

	switch res.Outcome {
	case core.Written:
		fmt.Fprintln(stdout, res.ETag)
		return 0
	case core.Conflict:
		fmt.Fprintf(stderr, "conflict: %s\n", res.Message)
		return 2
	default:
		fmt.Fprintf(stderr, "write failed (%d): %s\n", res.Status, res.Message)
		return 1
	}
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeFlags.register(writeCmd, true)
	writeCmd.Flags().StringVar(&writeData, "data", "", "JSON content, or - for stdin")
	writeCmd.Flags().StringVar(&writeIfMatch, "if-match", "", "Expected current version token")
	writeCmd.MarkFlagRequired("data")
}
