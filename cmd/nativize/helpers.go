package main

import (
	"context"
	"fmt"
	"strings"

	"nativize/internal/client"
)

// resolveJobID accepts a full job id or a unique prefix and returns the
// full id.
func resolveJobID(ctx context.Context, c *client.Client, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("job id is required")
	}

	jobs, err := c.List(ctx)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, job := range jobs {
		if job.ID == arg {
			return job.ID, nil
		}
		if strings.HasPrefix(job.ID, arg) {
			matches = append(matches, job.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		// Pass through; the daemon reports not_found with the exact id.
		return arg, nil
	default:
		return "", fmt.Errorf("job id prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}
