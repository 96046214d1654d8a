package console

import (
	"bufio"
	"bytes"
	"log/slog"
	"unicode"
)

// maxTokenSize bounds a single command token; every real command is far
// shorter.
const maxTokenSize = 4 * 1024

// wordSplitter behaves like bufio.ScanWords, except that a word which does
// not fit in the scanner buffer is discarded up to the next whitespace
// instead of failing the scan with bufio.ErrTooLong.
type wordSplitter struct {
	max      int
	skipping bool
}

func (w *wordSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	// The rest of the current word may be followed by a real one in the same
	// buffer, and at EOF there is no second call, so keep scanning after it.
	offset := 0
	if w.skipping {
		i := bytes.IndexFunc(data, unicode.IsSpace)
		if i < 0 {
			return len(data), nil, nil
		}
		w.skipping = false
		offset = i
	}

	advance, token, err := bufio.ScanWords(data[offset:], atEOF)
	if offset == 0 && advance == 0 && token == nil && err == nil && !atEOF && len(data) >= w.max {
		slog.Warn("command_token_too_long", "max_bytes", w.max)
		w.skipping = true
		return len(data), nil, nil
	}
	return offset + advance, token, err
}
