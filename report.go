package nativemod

import (
	"fmt"
	"strings"
)

// indent prefixes every non-empty line of s with depth levels of two-space
// indentation. A trailing newline is preserved without indenting the empty
// final line.
func indent(s string, depth int) string {
	if s == "" {
		return ""
	}
	prefix := strings.Repeat("  ", depth)

	trailing := strings.HasSuffix(s, "\n")
	body := strings.TrimSuffix(s, "\n")

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}

	out := strings.Join(lines, "\n")
	if trailing {
		out += "\n"
	}
	return out
}

// commandReport formats the outcome of an external process invocation,
// with stdout and stderr indented under a status line.
func commandReport(argv []string, status int, stdout, stderr string, ok bool) string {
	verdict := "failed"
	if ok {
		verdict = "successful"
	}
	head := fmt.Sprintf("Execution of %s %s with status %d.", strings.Join(argv, " "), verdict, status)
	detail := fmt.Sprintf("stdout:\n%s\nstderr:\n%s", indent(stdout, 1), indent(stderr, 1))
	return head + "\n" + indent(detail, 1)
}

// formatCommandLines renders a compiler invocation for verbose output:
// the command and its source arguments on continued lines, flags starting
// new continued lines, and flag arguments kept on the same line as their
// flag.
func formatCommandLines(argv []string) string {
	if len(argv) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(argv[0])

	// Sources come immediately after the command; source mode ends at the
	// first flag.
	sources := true
	for _, part := range argv[1:] {
		flag := strings.HasPrefix(part, "-")
		sources = sources && !flag

		if sources || flag {
			b.WriteString(" \\\n  ")
			b.WriteString(part)
		} else {
			b.WriteString(" ")
			b.WriteString(part)
		}
	}

	return b.String()
}
