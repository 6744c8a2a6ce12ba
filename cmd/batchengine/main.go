// Command batchengine runs and manages asynchronous batches.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshade/batchengine/internal/cli"
	"github.com/rshade/batchengine/pkg/version"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run executes the root command with args and returns the exit code.
func run(ctx context.Context, args []string) int {
	root := cli.NewRootCmd(version.GetVersion())
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return cli.ExitCode(err)
}
