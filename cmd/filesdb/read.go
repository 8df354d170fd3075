package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb/pkg/core"
)

var (
	readFlags    storeFlags
	readDataOnly bool
)

var readCmd = &cobra.Command{
	Use:   "read [path]",
	Short: "Read a document and its version token",
	Long: `Read a document. Prints a JSON object with "path", "etag" and "data".
With --data-only, prints just the content; the token goes to stderr.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := readFlags.openStore(ctx)
		if code := runRead(ctx, store, args[0], readDataOnly, os.Stdout, os.Stderr); code != 0 {
			os.Exit(code)
		}
	},
}

// runRead prints the document at path and returns the process exit
// status. It closes store before returning.
func runRead(ctx context.Context, store *core.Store, path string, dataOnly bool, stdout, stderr io.Writer) int {
	defer store.Close()

	doc, err := store.Read(ctx, path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read document: %v\n", err)
		return 1
	}

	data := doc.Data
	if data == nil {
		data = json.RawMessage("null")
	}

	if dataOnly {
		fmt.Fprintln(stderr, doc.ETag)
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			fmt.Fprintf(stderr, "Error encoding JSON: %v\n", err)
			return 1
		}
		pretty.WriteByte('\n')
		stdout.Write(pretty.Bytes())
		return 0
	}

	out := struct {
		Path string          `json:"path"`
		ETag string          `json:"etag"`
		Data json.RawMessage `json:"data"`
	}{Path: doc.Path, ETag: doc.ETag, Data: data}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(stderr, "Error encoding JSON: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.AddCommand(readCmd)
	readFlags.register(readCmd, true)
	readCmd.Flags().BoolVar(&readDataOnly, "data-only", false, "Print only the content")
}
