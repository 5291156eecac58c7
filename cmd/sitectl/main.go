package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/riaaa16/ai-consultant/internal/content"
	"github.com/riaaa16/ai-consultant/internal/gitops"
	"github.com/riaaa16/ai-consultant/pkg/logger"
)

func main() {
	// stdout is reserved for data; logs and results go to stderr.
	logger.SetOutput(os.Stderr)
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	code := exitCode(err)
	if code == 2 {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	} else {
		fmt.Fprintf(stderr, "Unexpected error: %v\n", err)
	}
	return code
}

// exitCode is 2 for content and git failures the caller can act on and 1
// for anything unexpected.
func exitCode(err error) int {
	if errors.Is(err, gitops.ErrGit) || errors.Is(err, errUsage) {
		return 2
	}
	if k := content.Kind(err); k != "" && k != content.KindInternal {
		return 2
	}
	return 1
}
