package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/freshbooks-report/pkg/report"
)

func (o *options) runReport(ctx context.Context, out io.Writer) error {
	if err := o.cfg.Validate(false); err != nil {
		return err
	}

	svc, closeFn, err := o.newService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := report.Build(ctx, svc, report.NewWriter(out))
	if err != nil {
		return err
	}

	o.logger.Debug().Int("rows", stats.Rows).Msg("Report command finished")
	return nil
}

func newProjectsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the projects of the business as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withMetrics(func() error {
				return o.runProjects(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}

func (o *options) runProjects(ctx context.Context, out io.Writer) error {
	if err := o.cfg.Validate(true); err != nil {
		return err
	}

	svc, closeFn, err := o.newService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	_, err = report.ListProjects(svc.Projects(ctx), report.NewProjectWriter(out))
	return err
}
