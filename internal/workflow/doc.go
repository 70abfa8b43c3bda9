// Package workflow drives localization jobs through the pipeline:
// uploading, analyzing, an optional review pause, audio generation, and
// stitching. A pool of workers claims jobs from the SQLite store, each
// worker runs its job's remaining stages in order, and a maintenance
// loop reclaims jobs whose worker stopped heartbeating and prunes
// abandoned staging directories.
package workflow
