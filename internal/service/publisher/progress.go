package publisher

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/oshokin/release-publisher/internal/domain/release"
)

// StatusFunc receives the rendered multi-line status of an upload batch.
type StatusFunc func(status string)

// uploadTask is the progress cell of one artifact.
type uploadTask struct {
	artifact release.Artifact
	// label is the artifact filename shown in the status line.
	label string
	// percent is the last reported completion, never decreasing.
	percent int
	// started is set once the first progress tick or completion arrives.
	started bool
	// done is set when the transfer finished successfully.
	done bool
}

// tracker aggregates per-task progress into one status line and records
// completions in order. Mutations and emissions happen under mu.
type tracker struct {
	mu sync.Mutex

	tasks      []uploadTask
	uploaded   int
	completed  []release.Artifact
	marker     *release.Artifact
	installers []string
	emit       StatusFunc
}

func newTracker(artifacts []release.Artifact, installers []string, emit StatusFunc) *tracker {
	tasks := make([]uploadTask, len(artifacts))
	for i, a := range artifacts {
		tasks[i] = uploadTask{
			artifact: a,
			label:    a.Name(),
		}
	}

	if emit == nil {
		emit = func(string) {}
	}

	return &tracker{
		tasks:      tasks,
		completed:  make([]release.Artifact, 0, len(artifacts)),
		installers: installers,
		emit:       emit,
	}
}

// start emits the initial line before any transfer reports.
func (t *tracker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.emit(t.renderLocked())
}

// progress records a transfer tick for task i. Ticks that would lower the
// percentage or arrive after completion are dropped.
func (t *tracker) progress(i int, fraction float64) {
	percent := toPercent(fraction)

	t.mu.Lock()
	defer t.mu.Unlock()

	task := &t.tasks[i]
	if task.done || (task.started && percent <= task.percent) {
		return
	}

	task.started = true
	task.percent = percent

	t.emit(t.renderLocked())
}

// complete marks task i as uploaded and applies release-marker selection:
// the last completed installer wins.
func (t *tracker) complete(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task := &t.tasks[i]
	task.started = true
	task.done = true
	task.percent = 100

	t.uploaded++
	t.completed = append(t.completed, task.artifact)

	if task.artifact.IsInstaller(t.installers) {
		marker := task.artifact
		t.marker = &marker
	}

	t.emit(t.renderLocked())
}

// outcome returns the completion-ordered artifacts and the selected marker.
func (t *tracker) outcome() *Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	return &Outcome{
		Uploaded: append([]release.Artifact(nil), t.completed...),
		Marker:   t.marker,
	}
}

// renderLocked builds the status line; tasks are listed in collection order.
func (t *tracker) renderLocked() string {
	details := make([]string, 0, len(t.tasks))

	for _, task := range t.tasks {
		if !task.started {
			continue
		}

		details = append(details, fmt.Sprintf("<%s>: %d%%", task.label, task.percent))
	}

	return fmt.Sprintf("Uploading artifacts %d/%d\n  %s", t.uploaded, len(t.tasks), strings.Join(details, "\t"))
}

func toPercent(fraction float64) int {
	switch {
	case math.IsNaN(fraction) || fraction <= 0:
		return 0
	case fraction >= 1:
		return 100
	default:
		return int(math.Round(fraction * 100))
	}
}
