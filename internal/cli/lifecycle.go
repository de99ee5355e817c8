package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jbonatakis/testqueue/internal/report"
)

func runConflicts(ctx context.Context, reportID string) error {
	return withApp(func(a *app) error {
		c, err := a.svc.Conflicts(ctx, reportID)
		if err != nil {
			return err
		}
		if c.Count() == 0 {
			fmt.Fprintln(os.Stdout, "no conflicts")
			return nil
		}
		printConflicts(os.Stdout, c)
		return nil
	})
}

func printConflicts(w io.Writer, c report.Conflicts) {
	for _, idx := range c.Indexes() {
		for _, cf := range c[idx] {
			fmt.Fprintf(w, "test %d (%s): %s vs %s\n", cf.TestIndex, cf.TestID, cf.A.TesterUsername, cf.B.TesterUsername)
			for _, sd := range cf.Scenarios {
				for _, ad := range sd.Assertions {
					fmt.Fprintf(w, "  %s/%s: %s vs %s\n", sd.ScenarioID, ad.AssertionID, verdict(ad.A), verdict(ad.B))
				}
				if len(sd.UnexpectedA) > 0 || len(sd.UnexpectedB) > 0 {
					fmt.Fprintf(w, "  %s unexpected behaviors: [%s] vs [%s]\n", sd.ScenarioID, kinds(sd.UnexpectedA), kinds(sd.UnexpectedB))
				}
			}
		}
	}
}

func verdict(p *bool) string {
	switch {
	case p == nil:
		return "unrecorded"
	case *p:
		return "passed"
	default:
		return "failed"
	}
}

func kinds[T ~string](ks []T) string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}

func runPromote(ctx context.Context, args []string) error {
	fs := newFlagSet("promote")
	as := asFlag(fs)
	pos, err := parseArgs(fs, args, 2, "promote requires exactly 2 arguments: <reportID> <STATUS>")
	if err != nil {
		return err
	}
	next, ok := report.ParseStatus(pos[1])
	if !ok {
		return UsageError{Message: fmt.Sprintf("invalid status %q", pos[1])}
	}
	return withApp(func(a *app) error {
		caller, err := a.caller(ctx, *as)
		if err != nil {
			return err
		}
		v, err := a.svc.PromoteReportStatus(ctx, caller, pos[0], next)
		if err != nil {
			return explainGate(err)
		}
		fmt.Fprintf(os.Stdout, "report %s is %s\n", v.ID, v.Status)
		return nil
	})
}

func runDemote(ctx context.Context, args []string) error {
	fs := newFlagSet("demote")
	as := asFlag(fs)
	pos, err := parseArgs(fs, args, 2, "demote requires exactly 2 arguments: <reportID> <STATUS>")
	if err != nil {
		return err
	}
	next, ok := report.ParseStatus(pos[1])
	if !ok {
		return UsageError{Message: fmt.Sprintf("invalid status %q", pos[1])}
	}
	return withApp(func(a *app) error {
		caller, err := a.caller(ctx, *as)
		if err != nil {
			return err
		}
		v, err := a.svc.DemoteReportStatus(ctx, caller, pos[0], next)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "report %s is %s\n", v.ID, v.Status)
		return nil
	})
}

func runVendorReview(ctx context.Context, args []string) error {
	fs := newFlagSet("vendor-review")
	as := asFlag(fs)
	pos, err := parseArgs(fs, args, 2, "vendor-review requires exactly 2 arguments: <reportID> <STATUS>")
	if err != nil {
		return err
	}
	next, ok := report.ParseVendorReviewStatus(pos[1])
	if !ok {
		return UsageError{Message: fmt.Sprintf("invalid status %q", pos[1])}
	}
	return withApp(func(a *app) error {
		caller, err := a.caller(ctx, *as)
		if err != nil {
			return err
		}
		v, err := a.svc.PromoteVendorReviewStatus(ctx, caller, pos[0], next)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "report %s vendor review is %s\n", v.ID, *v.VendorReviewStatus)
		return nil
	})
}

// explainGate prints what blocked a promotion before returning err.
func explainGate(err error) error {
	var ce report.ConflictError
	if errors.As(err, &ce) {
		printConflicts(os.Stdout, ce.Conflicts)
		return err
	}
	var ie report.IncompleteError
	if errors.As(err, &ie) {
		return fmt.Errorf("%w: %s", err, ie.Detail())
	}
	return err
}
