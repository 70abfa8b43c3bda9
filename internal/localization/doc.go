// Package localization defines the segment and cultural report types
// shared across analysis, review, synthesis, and stitching, together
// with the validation applied at the job store boundary.
package localization
