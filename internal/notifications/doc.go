// Package notifications delivers job lifecycle events to an ntfy topic.
// Individual events can be toggled in configuration, and repeated identical
// notifications inside the dedup window are dropped.
package notifications
