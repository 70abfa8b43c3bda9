// Package preflight provides readiness checks for the external services
// and filesystem paths the localization pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs any failures so a bad
//     API key or missing binary surfaces before the first job is claimed.
//   - The CLI "nativize status" command renders individual check results
//     to show service health.
//
// Checks for optional features are skipped when the feature is off.
package preflight
