package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/cli"
)

const (
	exitFailure = 1
	exitUsage   = 2
	exitRefused = 3
)

func main() {
	err := cli.Run(os.Args[1:])
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
	if errors.As(err, new(cli.UsageError)) {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, cli.Usage())
	}
	os.Exit(exitCode(err))
}

// exitCode separates bad invocations and refused status changes from
// other failures so scripts can tell them apart.
func exitCode(err error) int {
	switch {
	case errors.As(err, new(cli.UsageError)):
		return exitUsage
	case errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrConflicts),
		errors.Is(err, apperr.ErrIncomplete):
		return exitRefused
	default:
		return exitFailure
	}
}
