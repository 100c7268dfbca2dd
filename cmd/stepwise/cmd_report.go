package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"stepwise/internal/curriculum"
	"stepwise/internal/render"
)

func newReportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute and print one progress report",
		Long: `Computes the progress report once and prints it.

Exits non-zero when the report cannot be produced, for example when the
pointer document is missing in declared mode. The error is also written to
stderr as {"error": <category>, "message": <detail>}.`,
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

			report, err := svc.Compute(cmd.Context())
			if err != nil {
				writeError(a.stderr, err)
				return reportedError{err}
			}
			return render.Write(a.stdout, f, report, render.DefaultOptions())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatText), "output format: json, text or markdown")
	return cmd
}

// reportedError wraps an error already written to stderr by writeError.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// writeError prints the boundary error shape {error, message}.
func writeError(w io.Writer, err error) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(map[string]string{
		"error":   string(curriculum.CategoryOf(err)),
		"message": curriculum.MessageOf(err),
	})
}
