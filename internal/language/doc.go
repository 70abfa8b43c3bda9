// Package language holds the catalog of supported localization targets
// and the normalization rules for user-supplied language identifiers.
package language
