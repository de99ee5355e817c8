package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/session"
	"github.com/jbonatakis/testqueue/internal/tui"
)

func runSession(ctx context.Context, args []string) error {
	fs := newFlagSet("run")
	as := asFlag(fs)
	start := fs.Int("test", 0, "1-based position to open (default: first unfinished test)")
	pos, err := parseArgs(fs, args, 1, "run requires exactly 1 argument: <runID>")
	if err != nil {
		return err
	}
	runID := pos[0]

	return withApp(func(a *app) error {
		caller, err := a.caller(ctx, *as)
		if err != nil {
			return err
		}
		rc, err := a.svc.RunSession(ctx, caller, runID)
		if err != nil {
			return err
		}
		position := *start
		if position == 0 {
			position = firstUnfinished(rc)
		}
		ctl, err := session.New(a.svc.RunSaver(caller, runID), rc.Tests, rc.Run.TestResults, position)
		if err != nil {
			return err
		}
		a.log.Info("session opened", "run", runID, "user", caller.Username, "position", ctl.CurrentPosition())
		return tui.Start(ctx, ctl, tui.Info{
			Title:     rc.VersionTitle,
			ATName:    a.support.ATName(rc.Report.ATID),
			Browser:   a.support.BrowserName(rc.Report.BrowserID),
			RunID:     runID,
			Tests:     rc.Resolved,
			Navigator: rc.Navigator,
			Issues:    rc.Issues,
		})
	})
}

// firstUnfinished returns the position of the first test without a complete
// result, or 1 when every test has one.
func firstUnfinished(rc queue.RunContext) int {
	for _, item := range rc.Navigator {
		if item.Status == report.NavNotStarted || item.Status == report.NavInProgress {
			return item.Position
		}
	}
	return 1
}

func runIssues(ctx context.Context, runID, rawIndex string) error {
	index, err := queue.ParseIndex(rawIndex)
	if err != nil {
		return UsageError{Message: fmt.Sprintf("invalid test index %q", rawIndex)}
	}
	return withApp(func(a *app) error {
		issues, err := a.svc.Issues(ctx, runID, index)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			fmt.Fprintln(os.Stdout, "no open issues")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		for _, is := range issues {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", is.ID, is.FeedbackType, is.Author, is.Title, is.Link)
		}
		_ = w.Flush()
		return nil
	})
}

type issueFile struct {
	Issues []issueEntry `yaml:"issues"`
}

type issueEntry struct {
	ID           string `yaml:"id"`
	RunID        string `yaml:"testPlanRunId"`
	TestIndex    int    `yaml:"testIndex"`
	Title        string `yaml:"title"`
	Link         string `yaml:"link"`
	Author       string `yaml:"author"`
	FeedbackType string `yaml:"feedbackType"`
	Closed       bool   `yaml:"closed"`
}

func runIssuesImport(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("issues file not found: %s", path)
		}
		return fmt.Errorf("read issues file: %w", err)
	}
	var f issueFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse issues file %s: %w", path, err)
	}
	issues := make([]report.Issue, 0, len(f.Issues))
	for i, e := range f.Issues {
		if e.ID == "" || e.RunID == "" || e.TestIndex < 1 {
			return fmt.Errorf("issues[%d]: id, testPlanRunId and testIndex are required", i)
		}
		issues = append(issues, report.Issue{
			ID:            e.ID,
			TestPlanRunID: e.RunID,
			TestIndex:     e.TestIndex,
			Title:         e.Title,
			Link:          e.Link,
			Author:        e.Author,
			FeedbackType:  e.FeedbackType,
			Closed:        e.Closed,
		})
	}
	return withApp(func(a *app) error {
		if err := a.store.ImportIssues(ctx, issues); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %d issues\n", len(issues))
		return nil
	})
}
