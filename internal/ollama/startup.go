package ollama

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady fails fast when Ollama is down and pulls model when it is not
// present yet, reporting progress on w.
func EnsureReady(ctx context.Context, c *Client, model string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running at %s. Start it with: ollama serve", c.baseURL)
	}

	if !c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		last := ""
		err := c.PullModel(ctx, model, func(p PullProgress) {
			line := p.Status
			if p.Total > 0 {
				line = fmt.Sprintf("%s %d%%", p.Status, p.Completed*100/p.Total)
			}
			if line != last {
				fmt.Fprintf(w, "  %s\n", line)
				last = line
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
	}

	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
