package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stepwise/internal/logging"
	"stepwise/internal/progress"
	"stepwise/internal/render"
	"stepwise/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		format   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the report again whenever the curriculum changes",
		Long: `Prints the progress report, then watches the tests directory and the
pointer document and prints a fresh report after each burst of changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := &printer{svc: svc, format: f, out: a.stdout, errOut: a.stderr}
			p.print(ctx, nil)

			w, err := watch.New(svc.TestsDir(), svc.PointerPath(), p.print, watch.WithDebounce(debounce))
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return w.Run(gctx) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatText), "output format: json, text or markdown")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a burst of changes is reported")
	return cmd
}

// printer recomputes and prints the report. Failures are printed in the
// boundary error shape and watching continues.
type printer struct {
	svc    *progress.Service
	format render.Format
	out    io.Writer
	errOut io.Writer
}

func (p *printer) print(ctx context.Context, changed []string) {
	if len(changed) > 0 {
		names := make([]string, len(changed))
		for i, c := range changed {
			names[i] = filepath.Base(c)
		}
		logging.Watch("Changed: %v", names)
	}

	report, err := p.svc.Compute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		writeError(p.errOut, err)
		return
	}
	if p.format == render.FormatText {
		fmt.Fprintf(p.out, "\n[%s]\n", time.Now().Format(time.TimeOnly))
	}
	if err := render.Write(p.out, p.format, report, render.DefaultOptions()); err != nil {
		logging.WatchWarn("Render failed: %v", err)
	}
}
