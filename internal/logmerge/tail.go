package logmerge

import (
	"bytes"
	"os"
	"strings"
)

const tailBlockSize = 8192

// TailLines returns the last n lines of a file without reading the whole
// thing, scanning backwards in fixed-size blocks.
func TailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pos := info.Size()
	var data []byte
	for pos > 0 && bytes.Count(data, []byte{'\n'}) <= n {
		readSize := int64(tailBlockSize)
		if pos < readSize {
			readSize = pos
		}
		pos -= readSize

		block := make([]byte, readSize)
		if _, err := f.ReadAt(block, pos); err != nil {
			return nil, err
		}
		data = append(block, data...)
	}

	lines := splitLines(string(data))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// splitLines splits on newlines without producing a trailing empty line.
// CRLF is normalized before the trailing newline is trimmed so the last
// line never keeps a stray carriage return.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
