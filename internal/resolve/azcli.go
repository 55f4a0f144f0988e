package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// AzureCLI looks up web apps with the az command line tool.
type AzureCLI struct {
	// Path is the az executable. Empty means "az" from PATH.
	Path string
}

// DefaultHostName runs
//
//	az webapp list --resource-group RG --query [0].defaultHostName --output tsv
//
// and returns its trimmed output.
func (a AzureCLI) DefaultHostName(ctx context.Context, resourceGroup string) (string, error) {
	path := a.Path
	if path == "" {
		path = "az"
	}

	cmd := exec.CommandContext(ctx, path, "webapp", "list",
		"--resource-group", resourceGroup,
		"--query", "[0].defaultHostName",
		"--output", "tsv",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("az exited with code %d: %s", exitErr.ExitCode(), truncate(strings.TrimSpace(stderr.String()), 500))
		}
		return "", fmt.Errorf("run az: %w", err)
	}

	host := strings.TrimSpace(stdout.String())
	if host == "" || host == "null" {
		return "", ErrNoApp
	}
	return host, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
