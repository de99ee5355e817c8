package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbonatakis/testqueue/internal/config"
	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

func runInit(ctx context.Context) error {
	root := projectRoot()

	path := config.ProjectConfigPath(root)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stdout, "config already exists: %s\n", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	} else {
		if err := config.Save(root, config.RawConfig{}); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
		fmt.Fprintf(os.Stdout, "created config: %s\n", path)
	}

	return withApp(func(a *app) error {
		if err := writeSupportIfMissing(a.cfg.Support.Path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "store ready: %s\n", a.cfg.Store.Path)
		return nil
	})
}

func writeSupportIfMissing(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat support file: %w", err)
	}
	b, err := yaml.Marshal(testplan.Support{
		ATs:      []testplan.AT{},
		Browsers: []testplan.Browser{},
		Commands: []testplan.Command{},
	})
	if err != nil {
		return fmt.Errorf("encode support file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create support dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write support file: %w", err)
	}
	fmt.Fprintf(os.Stdout, "created support catalogue: %s\n", path)
	return nil
}

func runImportPlan(ctx context.Context, path string) error {
	v, err := testplan.Load(path)
	if err != nil {
		if errors.Is(err, testplan.ErrVersionFileNotFound) {
			return fmt.Errorf("test plan file not found: %s", path)
		}
		return err
	}
	return withApp(func(a *app) error {
		if err := a.svc.ImportVersion(ctx, v); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %s (%d tests)\n", v.ID, len(v.Tests))
		tests, err := testplan.ResolveTests(testplan.FromVersion(v), a.support)
		if err != nil {
			return err
		}
		for _, rt := range tests {
			ats := make([]string, 0, len(rt.ATs))
			for _, at := range rt.ATs {
				ats = append(ats, at.Name)
			}
			fmt.Fprintf(os.Stdout, "  %d  %s [%s]\n", rt.Index, rt.Title, strings.Join(ats, ", "))
			for _, rs := range rt.Scenarios {
				cmds := make([]string, 0, len(rs.Commands))
				for _, cmd := range rs.Commands {
					cmds = append(cmds, cmd.Text)
				}
				fmt.Fprintf(os.Stdout, "      %s: %s\n", rs.ID, strings.Join(cmds, " then "))
			}
		}
		return nil
	})
}

func runUsersAdd(ctx context.Context, username, roles string) error {
	return withApp(func(a *app) error {
		u, err := a.svc.AddUser(ctx, username, strings.Split(roles, ","))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "added %s [%s]\n", u.Username, strings.Join(u.Roles, ","))
		return nil
	})
}

func runReportCreate(ctx context.Context, args []string) error {
	fs := newFlagSet("report create")
	versionID := fs.String("version", "", "test plan version id")
	atID := fs.String("at", "", "assistive technology id")
	browserID := fs.String("browser", "", "browser id")
	as := asFlag(fs)
	if _, err := parseArgs(fs, args, 0, "report create takes only flags"); err != nil {
		return err
	}
	if *versionID == "" || *atID == "" || *browserID == "" {
		return UsageError{Message: "report create requires --version, --at and --browser"}
	}
	return withApp(func(a *app) error {
		caller, err := a.caller(ctx, *as)
		if err != nil {
			return err
		}
		r, err := a.svc.CreateReport(ctx, caller, *versionID, *atID, *browserID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "created report %s\n", r.ID)
		return nil
	})
}

func runReportList(ctx context.Context, args []string) error {
	fs := newFlagSet("report list")
	statuses := fs.String("status", "", "comma-separated statuses")
	versionID := fs.String("version", "", "test plan version id")
	atID := fs.String("at", "", "assistive technology id")
	planID := fs.String("plan", "", "test plan id")
	if _, err := parseArgs(fs, args, 0, "report list takes only flags"); err != nil {
		return err
	}
	filter := queue.ReportFilter{TestPlanVersionID: *versionID, ATID: *atID, TestPlanID: *planID}
	if *statuses != "" {
		for _, s := range strings.Split(*statuses, ",") {
			st, ok := report.ParseStatus(s)
			if !ok {
				return UsageError{Message: fmt.Sprintf("invalid status %q", s)}
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	return withApp(func(a *app) error {
		views, err := a.svc.TestPlanReports(ctx, filter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d runs\t%d conflicts\n",
				v.ID, v.Status.Label(), v.TestPlanVersionTitle,
				a.support.ATName(v.ATID), a.support.BrowserName(v.BrowserID),
				len(v.Runs), v.Conflicts.Count())
		}
		_ = w.Flush()
		return nil
	})
}

func runReportShow(ctx context.Context, reportID string) error {
	return withApp(func(a *app) error {
		v, err := a.svc.Report(ctx, reportID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "ID: %s\n", v.ID)
		fmt.Fprintf(os.Stdout, "Version: %s (%s)\n", v.TestPlanVersionTitle, v.TestPlanVersionID)
		fmt.Fprintf(os.Stdout, "AT: %s\n", a.support.ATName(v.ATID))
		fmt.Fprintf(os.Stdout, "Browser: %s\n", a.support.BrowserName(v.BrowserID))
		fmt.Fprintf(os.Stdout, "Status: %s\n", v.Status.Label())
		if v.VendorReviewStatus != nil {
			fmt.Fprintf(os.Stdout, "Vendor review: %s\n", v.VendorReviewStatus.Label())
		}
		printTime("Candidate reached", v.CandidateStatusReachedAt)
		printTime("Recommended target", v.RecommendedStatusTargetDate)
		printTime("Recommended reached", v.RecommendedStatusReachedAt)
		fmt.Fprintf(os.Stdout, "Complete: %v\n", v.IsComplete)
		fmt.Fprintf(os.Stdout, "Conflicts: %d\n", v.Conflicts.Count())
		fmt.Fprintln(os.Stdout)

		fmt.Fprintln(os.Stdout, "Runs:")
		if len(v.Runs) == 0 {
			fmt.Fprintln(os.Stdout, "- (none)")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		for _, r := range v.Runs {
			state := "in progress"
			if r.IsComplete {
				state = "complete"
			}
			fmt.Fprintf(w, "- %s\t%s\t%d/%d\t%s\n", r.ID, r.TesterUsername, r.TestResultCount, len(v.RunnableTests), state)
		}
		_ = w.Flush()
		return nil
	})
}

func printTime(label string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Fprintf(os.Stdout, "%s: %s\n", label, t.UTC().Format(time.RFC3339))
}

func runAssign(ctx context.Context, args []string) error {
	fs := newFlagSet("assign")
	as := asFlag(fs)
	pos, err := parseArgs(fs, args, 2, "assign requires exactly 2 arguments: <reportID> <username>")
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		caller, err := a.caller(ctx, *as)
		if err != nil {
			return err
		}
		run, err := a.svc.AssignTester(ctx, caller, pos[0], pos[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "assigned %s: run %s (%d tests)\n", pos[1], run.ID, len(run.TestResults))
		return nil
	})
}
