// Package services defines the shared error taxonomy and context helpers
// used by the external-service adapters (analyzer, speech synthesis, media
// processing, object storage).
//
// Errors are classified by wrapping them with the exported sentinel markers;
// the stage executor consults Retriable to pick retry behavior and Details to
// produce the sanitized record persisted on a failed job. No path, credential,
// or stack information belongs in a persisted message.
package services
