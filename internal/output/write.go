package output

import (
	"fmt"
	"os"
)

// Write sends formatted content to its destination. "-" writes to stdout
// unless quiet is set; anything else is treated as a file path and
// overwritten. File writes confirm the path on stderr so piped stdout stays
// clean.
func Write(content, path string, quiet bool) error {
	if path == "-" {
		if !quiet {
			fmt.Println(content)
		}
		return nil
	}

	if err := os.WriteFile(path, []byte(content+"\n"), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", path)
	}
	return nil
}
