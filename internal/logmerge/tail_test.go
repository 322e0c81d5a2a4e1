package logmerge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTailLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "one\ntwo\nthree\nfour\n")

	lines, err := TailLines(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four"}, lines)
}

func TestTailLinesMoreThanAvailable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "only\n")

	lines, err := TailLines(path, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, lines)
}

func TestTailLinesCRLF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "one\r\ntwo\r\nthree\r\n")

	lines, err := TailLines(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestTailLinesZero(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "a\nb\n")

	lines, err := TailLines(path, 0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTailLinesCrossesBlockBoundary(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&b, "line number %06d with some padding text\n", i)
	}
	path := writeFile(t, dir, "big.log", b.String())

	lines, err := TailLines(path, 100)
	require.NoError(t, err)
	require.Len(t, lines, 100)
	assert.Equal(t, "line number 001900 with some padding text", lines[0])
	assert.Equal(t, "line number 001999 with some padding text", lines[99])
}

func TestTailLinesMissingFile(t *testing.T) {
	_, err := TailLines(filepath.Join(t.TempDir(), "absent.log"), 5)
	assert.Error(t, err)
}

func TestFileSourceRotationChain(t *testing.T) {
	dir := t.TempDir()
	current := writeFile(t, dir, "home-assistant.log", "new1\nnew2\n")
	rotated := writeFile(t, dir, "home-assistant.log.1", "old1\nold2\nold3\n")

	src := NewFileSource("home-assistant.log", current, rotated)
	lines, err := src.Fetch(context.Background(), 4)
	require.NoError(t, err)

	// Rotated lines fill the remainder and precede the current file's.
	assert.Equal(t, []string{"old2", "old3", "new1", "new2"}, lines)
}

func TestFileSourceSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	current := writeFile(t, dir, "home-assistant.log", "a\nb\n")

	src := NewFileSource("home-assistant.log",
		current,
		filepath.Join(dir, "home-assistant.log.1"),
		filepath.Join(dir, "home-assistant.log.2"),
	)
	lines, err := src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestFileSourceNothingOnDisk(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource("home-assistant.log", filepath.Join(dir, "home-assistant.log"))

	lines, err := src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
