package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm prompts the user to confirm a destructive action on the platform.
// - If opts.DryRun is true, it returns false but no error (no action should be taken).
// - If opts.Yes is true, it returns true without prompting.
// An empty answer or end of input declines.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	if in == nil {
		return false, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}
