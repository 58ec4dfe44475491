package terminal

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Continuation ends a line that goes on below; it stands for Shift+Enter.
const Continuation = `\`

// DefaultWidth is used when the output is not a terminal
const DefaultWidth = 80

// Reader reads user questions line by line
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadLine returns the next logical line without its terminator. A physical
// line ending in a backslash is joined to the following one with a newline.
// A final line without terminator is returned before io.EOF.
func (r *Reader) ReadLine() (string, error) {
	var sb strings.Builder
	for {
		line, err := r.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := err != nil
		line = strings.TrimRight(line, "\r\n")

		if strings.HasSuffix(line, Continuation) && !eof {
			sb.WriteString(strings.TrimSuffix(line, Continuation))
			sb.WriteByte('\n')
			continue
		}
		sb.WriteString(line)

		if eof && sb.Len() == 0 {
			return "", io.EOF
		}
		return sb.String(), nil
	}
}

// IsTerminal checks if f is a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of f, or DefaultWidth
func Width(f *os.File) int {
	if !IsTerminal(f) {
		return DefaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// IsYes reports whether answer accepts an [o/N] question. Anything else,
// including an empty line, declines.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "o", "oui", "y", "yes":
		return true
	default:
		return false
	}
}
