package blocks

import (
	"strings"
)

const (
	// MaxTitleLen is the maximum title length in characters.
	MaxTitleLen = 180
	Untitled    = "Untitled"

	// blank lines needed between two blocks
	breakRun = 2
)

type Block struct {
	Content string
	Title   string
}

type scanState int

const (
	inContent scanState = iota
	inBlankRun
)

// Split partitions text into blocks separated by two or more blank lines.
// Text without such a separator comes back as a single block.
func Split(text string) []Block {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var (
		res    []Block
		cur    []string
		blanks []string
		breaks int
		state  = inContent
	)

	flush := func() {
		content := strings.TrimSpace(strings.Join(cur, "\n"))
		cur = cur[:0]
		if content == "" {
			return
		}
		res = append(res, Block{Content: content, Title: TitleOf(content)})
	}

	for _, line := range strings.Split(trimmed, "\n") {
		blank := strings.TrimSpace(line) == ""

		switch state {
		case inContent:
			if blank {
				state = inBlankRun
				blanks = append(blanks[:0], line)
				continue
			}
			cur = append(cur, line)
		case inBlankRun:
			if blank {
				blanks = append(blanks, line)
				continue
			}
			if len(blanks) >= breakRun {
				flush()
				breaks++
			} else {
				cur = append(cur, blanks...)
			}
			state = inContent
			cur = append(cur, line)
		}
	}

	if breaks == 0 {
		return []Block{{Content: trimmed, Title: TitleOf(trimmed)}}
	}

	flush()
	return res
}

// TitleOf returns the first non-blank line of content cut to MaxTitleLen characters.
func TitleOf(content string) string {
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}

		return truncate(t, MaxTitleLen)
	}

	return Untitled
}

// Snippet flattens content to one line of at most n characters.
func Snippet(content string, n int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if len([]rune(flat)) <= n {
		return flat
	}

	return truncate(flat, n) + "…"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
