package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jbonatakis/testqueue/internal/apperr"
	"github.com/jbonatakis/testqueue/internal/report"
)

// UserEnv supplies the acting username when --as is not given.
const UserEnv = "TESTQUEUE_USER"

type UsageError struct {
	Message string
}

func (e UsageError) Error() string { return e.Message }

func Usage() string {
	return `testqueue: test plan report queue

Usage:
  testqueue init
  testqueue import-plan <file.yaml>
  testqueue users add <username> <ROLE,...>
  testqueue report create --version <id> --at <atID> --browser <browserID> [--as <user>]
  testqueue report list [--status S,...] [--version ID] [--at ID] [--plan ID]
  testqueue report show <reportID>
  testqueue assign <reportID> <username> [--as <user>]
  testqueue conflicts <reportID>
  testqueue promote <reportID> <STATUS> [--as <user>]
  testqueue demote <reportID> <STATUS> [--as <user>]
  testqueue vendor-review <reportID> <STATUS> [--as <user>]
  testqueue run <runID> [--test N] [--as <user>]
  testqueue issues <runID> <index>
  testqueue issues import <file.yaml>
  testqueue summary <testPlanID>
  testqueue serve [--addr host:port]

Roles:
  ADMIN | TESTER | VENDOR

Report statuses:
  DRAFT | CANDIDATE | RECOMMENDED

Vendor review statuses:
  PENDING | IN_PROGRESS | APPROVED

The acting user defaults to $` + UserEnv + `.
`
}

func Run(args []string) error {
	if len(args) == 0 {
		return UsageError{Message: "missing command"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "help", "-h", "--help":
		fmt.Fprintln(os.Stdout, Usage())
		return nil
	case "init":
		if len(args) != 1 {
			return UsageError{Message: "init takes no arguments"}
		}
		return runInit(ctx)
	case "import-plan":
		if len(args) != 2 {
			return UsageError{Message: "import-plan requires exactly 1 argument: <file.yaml>"}
		}
		return runImportPlan(ctx, args[1])
	case "users":
		if len(args) != 4 || args[1] != "add" {
			return UsageError{Message: "usage: users add <username> <ROLE,...>"}
		}
		return runUsersAdd(ctx, args[2], args[3])
	case "report":
		if len(args) < 2 {
			return UsageError{Message: "report requires a subcommand: create | list | show"}
		}
		switch args[1] {
		case "create":
			return runReportCreate(ctx, args[2:])
		case "list":
			return runReportList(ctx, args[2:])
		case "show":
			if len(args) != 3 {
				return UsageError{Message: "report show requires exactly 1 argument: <reportID>"}
			}
			return runReportShow(ctx, args[2])
		default:
			return UsageError{Message: fmt.Sprintf("unknown report subcommand: %q", args[1])}
		}
	case "assign":
		return runAssign(ctx, args[1:])
	case "conflicts":
		if len(args) != 2 {
			return UsageError{Message: "conflicts requires exactly 1 argument: <reportID>"}
		}
		return runConflicts(ctx, args[1])
	case "promote":
		return runPromote(ctx, args[1:])
	case "demote":
		return runDemote(ctx, args[1:])
	case "vendor-review":
		return runVendorReview(ctx, args[1:])
	case "run":
		return runSession(ctx, args[1:])
	case "issues":
		if len(args) == 3 && args[1] == "import" {
			return runIssuesImport(ctx, args[2])
		}
		if len(args) != 3 {
			return UsageError{Message: "issues requires 2 arguments: <runID> <index>"}
		}
		return runIssues(ctx, args[1], args[2])
	case "summary":
		if len(args) != 2 {
			return UsageError{Message: "summary requires exactly 1 argument: <testPlanID>"}
		}
		return runSummary(ctx, args[1])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		return UsageError{Message: fmt.Sprintf("unknown command: %q", args[0])}
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs parses fs allowing flags after positional arguments and checks
// the positional count.
func parseArgs(fs *flag.FlagSet, args []string, want int, usage string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, UsageError{Message: err.Error()}
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
	if len(positional) != want {
		return nil, UsageError{Message: usage}
	}
	return positional, nil
}

func asFlag(fs *flag.FlagSet) *string {
	return fs.String("as", os.Getenv(UserEnv), "acting username")
}

func (a *app) caller(ctx context.Context, username string) (report.Caller, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return report.Caller{}, UsageError{Message: "no acting user (pass --as or set $" + UserEnv + ")"}
	}
	c, err := a.svc.Caller(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return report.Caller{}, fmt.Errorf("unknown user %q (run `testqueue users add`)", username)
	}
	return c, err
}
