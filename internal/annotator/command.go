package annotator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandClient runs `<executable> run <model>` once per prompt, writing the
// prompt to stdin and reading the answer from stdout.
type CommandClient struct {
	executable string
	model      string
}

// NewCommandClient creates a client for a local model runner binary.
func NewCommandClient(executable, model string) *CommandClient {
	return &CommandClient{executable: executable, model: model}
}

// Complete implements Collaborator. The process is killed when ctx expires.
func (c *CommandClient) Complete(ctx context.Context, prompt string, _ []string) (string, error) {
	cmd := exec.CommandContext(ctx, c.executable, "run", c.model) // #nosec G204 -- executable comes from the user's config
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s run %s: %w", c.executable, c.model, ctx.Err())
		}
		return "", fmt.Errorf("%s run %s: %w: %s", c.executable, c.model, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
