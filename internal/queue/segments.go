package queue

import (
	"encoding/json"
	"fmt"

	"nativize/internal/localization"
	"nativize/internal/services"
)

// Segments decodes the stored segment list. An empty column yields nil.
func (j *Job) Segments() ([]localization.Segment, error) {
	if j.SegmentsJSON == "" {
		return nil, nil
	}
	var segments []localization.Segment
	if err := json.Unmarshal([]byte(j.SegmentsJSON), &segments); err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "decode_segments",
			fmt.Sprintf("job %s has malformed segment data", j.ID), err)
	}
	return segments, nil
}

// SetSegments validates and stores the segment list. Malformed analyzer
// output is rejected here so it never reaches synthesis or stitching.
func (j *Job) SetSegments(segments []localization.Segment) error {
	if err := localization.ValidateSegments(segments); err != nil {
		return err
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "encode_segments", "segment data not serializable", err)
	}
	j.SegmentsJSON = string(data)
	return nil
}

// Report decodes the stored cultural report.
func (j *Job) Report() (localization.CulturalReport, error) {
	if j.ReportJSON == "" {
		return localization.CulturalReport{}, nil
	}
	var report localization.CulturalReport
	if err := json.Unmarshal([]byte(j.ReportJSON), &report); err != nil {
		return localization.CulturalReport{}, services.Wrap(services.ErrValidation, "", "decode_report",
			fmt.Sprintf("job %s has malformed cultural report", j.ID), err)
	}
	return report, nil
}

// SetReport validates and stores the cultural report.
func (j *Job) SetReport(report localization.CulturalReport) error {
	if err := localization.ValidateReport(report); err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "encode_report", "report not serializable", err)
	}
	j.ReportJSON = string(data)
	return nil
}

// HasSegments reports whether analysis has produced segments for this job.
func (j *Job) HasSegments() bool {
	return j.SegmentsJSON != ""
}
