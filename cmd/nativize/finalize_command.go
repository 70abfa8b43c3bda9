package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nativize/internal/api"
)

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var editsPath string
	var approveAll bool
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "finalize <job-id>",
		Short: "Approve a reviewed job and resume audio generation",
		Long: "Finalize releases a job waiting in review. Segment edits can be\n" +
			"supplied as a JSON file; edited segments get their audio regenerated.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.apiClient()
			id, err := resolveJobID(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}

			var edits []api.SegmentEdit
			if strings.TrimSpace(editsPath) != "" {
				data, err := os.ReadFile(editsPath)
				if err != nil {
					return fmt.Errorf("read edits file: %w", err)
				}
				if err := json.Unmarshal(data, &edits); err != nil {
					return fmt.Errorf("parse edits file: %w", err)
				}
			}
			if approveAll {
				job, err := c.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				edits = approveAllEdits(job.Segments, edits)
			}

			resp, err := c.Finalize(cmd.Context(), id, edits)
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s resumed at %s\n", shortID(resp.Job.ID), resp.Job.StageLabel)
			if len(resp.InvalidatedSegments) > 0 {
				fmt.Fprintf(out, "Regenerating audio for segments %v\n", resp.InvalidatedSegments)
			} else {
				fmt.Fprintln(out, "No segments were edited; existing audio is kept")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&editsPath, "edits", "e", "", "JSON file with segment edits")
	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "Mark every segment approved as-is")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the finalize result as JSON")
	return cmd
}

// approveAllEdits fills in approved edits for every segment not already
// covered by an explicit edit.
func approveAllEdits(segments []api.Segment, explicit []api.SegmentEdit) []api.SegmentEdit {
	covered := make(map[int]bool, len(explicit))
	for _, edit := range explicit {
		covered[edit.Index] = true
	}
	edits := append([]api.SegmentEdit(nil), explicit...)
	for _, seg := range segments {
		if covered[seg.Index] {
			continue
		}
		edits = append(edits, api.SegmentEdit{
			Index:          seg.Index,
			TranslatedText: seg.TranslatedText,
			Approved:       true,
		})
	}
	return edits
}
