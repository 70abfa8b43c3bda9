package main

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"nativize/internal/api"
	"nativize/internal/config"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var languageFlag string
	var titleFlag string
	var voiceFlag string
	var uploadFlag bool
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "submit <video-file>",
		Short: "Submit a video for localization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(languageFlag) == "" {
				return errors.New("--language is required")
			}

			source, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}

			c := ctx.apiClient()
			req := api.SubmitRequest{
				Title:          strings.TrimSpace(titleFlag),
				TargetLanguage: languageFlag,
				Voice:          strings.TrimSpace(voiceFlag),
			}

			if uploadFlag {
				slot, err := c.RequestUpload(cmd.Context(), filepath.Base(source), mime.TypeByExtension(filepath.Ext(source)))
				if err != nil {
					return err
				}
				if err := c.UploadFile(cmd.Context(), slot, source); err != nil {
					return err
				}
				req.SourceRef = slot.SourceRef
			} else {
				req.SourcePath = source
			}

			job, err := c.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s -> %s)\n", shortID(job.ID), jobTitle(*job), job.TargetLanguage)
			fmt.Fprintf(cmd.OutOrStdout(), "Track it with: nativize show %s\n", shortID(job.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Target language (see `nativize languages`)")
	cmd.Flags().StringVarP(&titleFlag, "title", "t", "", "Display title for the job")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Explicit synthesis voice")
	cmd.Flags().BoolVar(&uploadFlag, "upload", false, "Upload the file to the daemon's storage instead of passing a path")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the created job as JSON")
	return cmd
}
