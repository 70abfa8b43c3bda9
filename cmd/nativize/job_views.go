package main

import (
	"fmt"
	"strings"

	"nativize/internal/api"
)

const shortIDLength = 8

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func formatProgress(job api.Job) string {
	return fmt.Sprintf("%d%%", job.Progress)
}

func jobTitle(job api.Job) string {
	if strings.TrimSpace(job.Title) != "" {
		return job.Title
	}
	return "(untitled)"
}

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := ""
		if job.Error != nil {
			detail = job.Error.Message
		}
		rows = append(rows, []string{
			shortID(job.ID),
			jobTitle(job),
			job.TargetLanguage,
			job.StageLabel,
			formatProgress(job),
			detail,
		})
	}
	return rows
}

func writeJobDetail(out *strings.Builder, job api.Job) {
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Title:    %s\n", jobTitle(job))
	fmt.Fprintf(out, "Language: %s\n", job.TargetLanguage)
	if job.Voice != "" {
		fmt.Fprintf(out, "Voice:    %s\n", job.Voice)
	}
	fmt.Fprintf(out, "Status:   %s (%s)\n", job.StageLabel, formatProgress(job))
	if job.DurationSeconds > 0 {
		fmt.Fprintf(out, "Duration: %.1fs\n", job.DurationSeconds)
	}
	if job.WordsLocalized > 0 {
		fmt.Fprintf(out, "Words:    %d localized\n", job.WordsLocalized)
	}
	if job.CompletedAt != "" {
		fmt.Fprintf(out, "Finished: %s\n", job.CompletedAt)
	}
	if job.Error != nil {
		fmt.Fprintf(out, "Error:    [%s] %s", job.Error.Kind, job.Error.Message)
		if job.Error.Retriable {
			fmt.Fprint(out, " (retriable)")
		}
		fmt.Fprintln(out)
	}
	if job.OutputRef != "" {
		fmt.Fprintf(out, "Output:   %s\n", job.OutputRef)
	}
	if job.MobileOutputRef != "" {
		fmt.Fprintf(out, "Mobile:   %s\n", job.MobileOutputRef)
	}
	if job.WhatsAppRef != "" {
		fmt.Fprintf(out, "WhatsApp: %s\n", job.WhatsAppRef)
	}
	if job.SubtitlesRef != "" {
		fmt.Fprintf(out, "Subs:     %s\n", job.SubtitlesRef)
	}

	if report := job.Report; report != nil {
		fmt.Fprintf(out, "\nCultural report: %d adaptations, quality %d/10\n", report.AdaptationCount, report.QualityScore)
		if report.Notes != "" {
			fmt.Fprintf(out, "  %s\n", report.Notes)
		}
		for _, s := range report.Sensitivities {
			fmt.Fprintf(out, "  ! %.1fs %s\n", s.Timestamp, s.Description)
		}
	}

	if len(job.Segments) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(segmentColumns, buildSegmentRows(job.Segments)))
	}
}

func buildSegmentRows(segments []api.Segment) [][]string {
	rows := make([][]string, 0, len(segments))
	for _, seg := range segments {
		audio := "pending"
		if seg.HasAudio {
			audio = "ready"
		}
		if seg.PacingWarning != "" {
			audio += " !"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", seg.Index),
			fmt.Sprintf("%.1f", seg.StartTime),
			fmt.Sprintf("%.1f", seg.EndTime),
			truncate(seg.TranslatedText, 60),
			audio,
		})
	}
	return rows
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
