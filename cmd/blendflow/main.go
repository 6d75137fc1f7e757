package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"blendflow/internal/services"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit status out of a command. err may be nil
// when the command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			reportError(stderr, exit.err)
		}
		return exit.code
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	reportError(stderr, err)
	return 1
}

func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
	if hint := services.Hint(err); hint != "" {
		fmt.Fprintln(w, "Hint:", hint)
	}
}
