package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptResult contains the result of a user prompt interaction.
type PromptResult struct {
	// Accepted is true if the user accepted the prompt (typed "y" or "yes").
	Accepted bool

	// Cancelled is true if reading the answer failed.
	Cancelled bool
}

// ConfirmCascadeDelete asks before a cascading delete discards uncompleted
// batch jobs. Non-interactive sessions never accept; callers pass --yes
// instead. An empty answer declines.
func ConfirmCascadeDelete(writer io.Writer, reader io.Reader, interactive bool, batchID string, pending int) PromptResult {
	if !interactive {
		return PromptResult{Accepted: false}
	}

	fmt.Fprintf(writer, "\nWarning: batch %s still has %d uncompleted batch jobs.\n", batchID, pending)
	fmt.Fprint(writer, "? Delete the batch and discard them? [y/N] ")

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return PromptResult{Cancelled: true}
		}
		return PromptResult{Accepted: false}
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return PromptResult{Accepted: true}
	default:
		return PromptResult{Accepted: false}
	}
}
