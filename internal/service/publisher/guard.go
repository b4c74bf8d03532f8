package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
)

// ErrPublisherRunning is returned when another publish run on this host targets the same location.
var ErrPublisherRunning = errors.New("another publish run targets the same location")

// markerPrefix starts every run marker filename.
const markerPrefix = "release-publisher-"

// runGuard is a marker file holding the PID and executable of the active run.
type runGuard struct {
	path string
}

// acquireGuard creates the run marker for target inside dir. A marker left by a
// process that no longer runs is treated as stale and replaced; the marker itself
// appears atomically with its contents, and only one of two racing runs wins.
func acquireGuard(ctx context.Context, dir, target string) (*runGuard, error) {
	path := filepath.Join(dir, markerPrefix+release.SafeKey(target)+".pid")

	logger.DebugKV(ctx, "Checking for a run marker", "path", path)

	if stale, err := os.ReadFile(filepath.Clean(path)); err == nil {
		if holder, running := parseMarker(stale); running {
			return nil, fmt.Errorf("%w: pid %d holds %s", ErrPublisherRunning, holder, path)
		}

		if err = clearStaleMarker(ctx, path, stale); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read run marker: %w", err)
	}

	if err := publishMarker(dir, path); err != nil {
		return nil, err
	}

	return &runGuard{path: path}, nil
}

// publishMarker writes the marker to a temporary file and hard-links it into
// place; the link fails when the marker already exists.
func publishMarker(dir, path string) error {
	tmp, err := os.CreateTemp(dir, markerPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create run marker: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	_, writeErr := fmt.Fprintf(tmp, "%d\n%s\n", os.Getpid(), executableOf(os.Getpid()))
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		return fmt.Errorf("write run marker: %w", writeErr)
	}

	if err = os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s was just created", ErrPublisherRunning, path)
		}

		return fmt.Errorf("create run marker: %w", err)
	}

	return nil
}

// release removes the marker.
func (g *runGuard) release(ctx context.Context) {
	if g == nil {
		return
	}

	if err := os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove run marker", "path", g.path, "error", err)
	}
}

// clearStaleMarker moves the marker aside and deletes it only when it still
// holds the contents judged stale. A marker another run created in between is
// put back and reported as ErrPublisherRunning.
func clearStaleMarker(ctx context.Context, path string, stale []byte) error {
	aside := fmt.Sprintf("%s.stale-%d", path, os.Getpid())

	if err := os.Rename(path, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("remove stale run marker: %w", err)
	}

	defer func() {
		_ = os.Remove(aside)
	}()

	moved, err := os.ReadFile(filepath.Clean(aside))
	if err != nil {
		return fmt.Errorf("read stale run marker: %w", err)
	}

	if !bytes.Equal(moved, stale) {
		// Link fails if yet another marker appeared; either way a run holds the target.
		_ = os.Link(aside, path)

		return fmt.Errorf("%w: %s was replaced while checking it", ErrPublisherRunning, path)
	}

	logger.InfoKV(ctx, "Removed stale run marker", "path", path)

	return nil
}

// markerHolder reports the PID recorded in the marker at path and whether that
// process is still alive and runs the recorded executable.
func markerHolder(path string) (int, bool) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, false
	}

	return parseMarker(contents)
}

// parseMarker reads "pid\nexecutable" marker contents.
func parseMarker(contents []byte) (int, bool) {
	lines := strings.SplitN(strings.TrimSpace(string(contents)), "\n", 2)

	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return 0, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	if len(lines) > 1 && process.Executable() != strings.TrimSpace(lines[1]) {
		return pid, false
	}

	return pid, true
}

func executableOf(pid int) string {
	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return ""
	}

	return process.Executable()
}
