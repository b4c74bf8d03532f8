package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/oshokin/release-publisher/internal/logger"
)

// statusSink displays the aggregate upload status.
// On a terminal the previous status is erased and redrawn; elsewhere each
// distinct status is logged at debug level.
type statusSink struct {
	mu sync.Mutex

	ctx      context.Context //nolint:containedctx // Used only for logger lookup.
	out      *os.File
	terminal bool
	// lines is the height of the last drawn status.
	lines int
	last  string
}

func newStatusSink(ctx context.Context, out *os.File) *statusSink {
	fd := out.Fd()

	return &statusSink{
		ctx:      ctx,
		out:      out,
		terminal: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Update renders status.
func (s *statusSink) Update(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == s.last {
		return
	}

	s.last = status

	if !s.terminal {
		logger.Debug(s.ctx, status)

		return
	}

	var b strings.Builder

	// Move to the first line of the previous status and clear everything below.
	if s.lines > 1 {
		_, _ = fmt.Fprintf(&b, "\x1b[%dA", s.lines-1)
	}

	b.WriteString("\r\x1b[J")
	b.WriteString(status)

	_, _ = s.out.WriteString(b.String())
	s.lines = strings.Count(status, "\n") + 1
}

// Close ends the in-place status so later output starts on a fresh line.
func (s *statusSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal && s.lines > 0 {
		_, _ = s.out.WriteString("\n")
	}

	s.lines = 0
}
