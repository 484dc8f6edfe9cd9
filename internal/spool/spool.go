// Package spool hands processed lists to the printer: each list is written
// to the spool directory and, when a print command is configured, piped to
// that command.
package spool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"go.uber.org/zap"
)

type Spooler struct {
	dir     string
	command []string
	logger  *zap.Logger
}

func NewSpooler(cfg config.SpoolConfig, logger *zap.Logger) *Spooler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spooler{
		dir:     cfg.Dir,
		command: strings.Fields(cfg.PrintCommand),
		logger:  logger,
	}
}

// Send spools a list_processed event. Other event types are ignored.
func (s *Spooler) Send(ctx context.Context, event kafka.ListEvent) error {
	if event.Type != kafka.EventListProcessed {
		return nil
	}
	_, err := s.Print(ctx, event.Code, event.Date, event.Text)
	return err
}

// Print writes text to <dir>/<code>_<yyyymmdd>.txt and runs the print
// command with the text on stdin. It returns the spooled file path.
func (s *Spooler) Print(ctx context.Context, code, date, text string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("spool: empty flight code")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("spool: create dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.txt", code, strings.ReplaceAll(date, "-", ""))
	path := filepath.Join(s.dir, name)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("spool: write %s: %w", name, err)
	}
	s.logger.Info("list spooled", zap.String("path", path))

	if len(s.command) == 0 {
		return path, nil
	}
	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return path, fmt.Errorf("spool: print command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return path, nil
}
