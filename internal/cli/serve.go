package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jbonatakis/testqueue/internal/api"
)

func runSummary(ctx context.Context, testPlanID string) error {
	return withApp(func(a *app) error {
		sum, err := a.svc.Summary(ctx, testPlanID)
		if err != nil {
			return err
		}
		if sum.Status == "" {
			fmt.Fprintf(os.Stdout, "%s: no published reports\n", testPlanID)
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", testPlanID, sum.Status)
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		for _, t := range sum.Targets() {
			e := sum.Latest[t]
			fmt.Fprintf(w, "- %s\t%s\t%s\t%s\t%s\n",
				a.support.ATName(t.ATID), a.support.BrowserName(t.BrowserID),
				e.Report.Status, e.Version.DisplayTitle(), e.Report.ID)
		}
		_ = w.Flush()
		return nil
	})
}

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", "", "listen address (default from config)")
	if _, err := parseArgs(fs, args, 0, "serve takes only flags"); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		listen := *addr
		if listen == "" {
			listen = a.cfg.API.ListenAddr
		}
		srv := api.NewServer(a.svc, a.log)
		if err := srv.Start(ctx, listen); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "listening on http://%s\n", srv.Addr())

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
