package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List localization jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ctx.apiClient().List(cmd.Context(), statusFilters...)
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(jobListColumns, buildJobRows(jobs)))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit jobs as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.apiClient()
			id, err := resolveJobID(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			job, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, job)
			}
			var out strings.Builder
			writeJobDetail(&out, *job)
			fmt.Fprint(cmd.OutOrStdout(), out.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the job as JSON")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.apiClient()
			id, err := resolveJobID(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			job, err := c.Retry(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s requeued at %s\n", shortID(job.ID), job.StageLabel)
			return nil
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job and its stored outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.apiClient()
			id, err := resolveJobID(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", shortID(id))
			return nil
		},
	}
}
