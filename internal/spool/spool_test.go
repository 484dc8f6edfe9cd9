package spool

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSend_WritesFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSpooler(config.SpoolConfig{Dir: dir}, zap.NewNop())

	err := s.Send(context.Background(), kafka.ListEvent{
		Type: kafka.EventListProcessed,
		Code: "CA984",
		Date: "2024-12-11",
		Text: "JCSY:CA0984/11DEC24/LAX,I",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "CA984_20241211.txt"))
	require.NoError(t, err)
	assert.Equal(t, "JCSY:CA0984/11DEC24/LAX,I\n", string(data))
}

func TestSend_IgnoresOtherEvents(t *testing.T) {
	dir := t.TempDir()
	s := NewSpooler(config.SpoolConfig{Dir: dir}, nil)

	require.NoError(t, s.Send(context.Background(), kafka.ListEvent{Type: kafka.EventRowResolved, Code: "CA984"}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrint_RunsCommand(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	s := NewSpooler(config.SpoolConfig{Dir: t.TempDir(), PrintCommand: "cat"}, zap.NewNop())

	path, err := s.Print(context.Background(), "CA984", "2024-12-11", "text")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestPrint_CommandFails(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	s := NewSpooler(config.SpoolConfig{Dir: t.TempDir(), PrintCommand: "false"}, zap.NewNop())

	path, err := s.Print(context.Background(), "CA984", "2024-12-11", "text")
	assert.ErrorContains(t, err, "print command")
	assert.FileExists(t, path)
}

func TestPrint_EmptyCode(t *testing.T) {
	s := NewSpooler(config.SpoolConfig{Dir: t.TempDir()}, zap.NewNop())
	_, err := s.Print(context.Background(), "", "2024-12-11", "text")
	assert.Error(t, err)
}
