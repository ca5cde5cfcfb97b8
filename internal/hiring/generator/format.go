package generator

import (
	"regexp"
	"strings"
)

var (
	headingLine = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.*?)\s*#*\s*$`)
	bulletLine  = regexp.MustCompile(`^(\s*)[*•]\s+(.*)$`)
	ruleLine    = regexp.MustCompile(`^\s*(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)
)

// FormatDescription rewrites markdown structure into the authoring UI's
// convention: headings become **Heading** lines, '*' and '•' bullets become
// '- ' bullets, horizontal rules are dropped and runs of blank lines are
// collapsed.
func FormatDescription(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false

	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		switch {
		case ruleLine.MatchString(line):
			continue
		case headingLine.MatchString(line):
			title := strings.Trim(headingLine.FindStringSubmatch(line)[1], "* ")
			if title == "" {
				continue
			}
			line = "**" + title + "**"
		case bulletLine.MatchString(line):
			m := bulletLine.FindStringSubmatch(line)
			line = m[1] + "- " + m[2]
		}

		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
