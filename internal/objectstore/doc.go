// Package objectstore abstracts artifact storage behind opaque references.
// The local backend keeps files under a directory for single-machine
// deployments; the gcs backend uploads to a Google Cloud Storage bucket.
package objectstore
