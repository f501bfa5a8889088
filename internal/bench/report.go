package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/tahsin716/lifo"
)

// Report summarises one Run.
type Report struct {
	RunID      string
	Tasks      int
	Executed   uint64 // tasks that ran to completion
	Failed     uint64 // tasks that panicked, on a worker or inline
	Retried    uint64 // resubmission attempts after a saturation rejection
	GaveUp     uint64 // tasks dropped after rejection
	Terminated bool
	Elapsed    time.Duration
	Stats      lifo.Stats
}

// Throughput is completed tasks per second.
func (r *Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Executed) / r.Elapsed.Seconds()
}

// HandoffRatio is the share of accepted tasks given directly to an idle
// worker.
func (r *Report) HandoffRatio() float64 {
	accepted := r.Stats.HandedOff + r.Stats.Spawned + r.Stats.Queued
	if accepted == 0 {
		return 0
	}
	return float64(r.Stats.HandedOff) / float64(accepted)
}

// Print writes a human readable summary to w.
func (r *Report) Print(w io.Writer) {
	title := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	status := good
	if !r.Terminated || r.GaveUp > 0 {
		status = bad
	}

	title.Fprintf(w, "lifobench run %s\n", r.RunID)
	fmt.Fprintf(w, "  elapsed      %v\n", r.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "  throughput   %.0f tasks/s\n", r.Throughput())
	fmt.Fprintf(w, "  tasks        %d submitted, ", r.Tasks)
	good.Fprintf(w, "%d executed", r.Executed)
	fmt.Fprint(w, ", ")
	if r.Failed > 0 {
		bad.Fprintf(w, "%d failed\n", r.Failed)
	} else {
		fmt.Fprintf(w, "%d failed\n", r.Failed)
	}
	fmt.Fprintf(w, "  routes       %d handoff, %d spawn, %d queue (%.1f%% handoff)\n",
		r.Stats.HandedOff, r.Stats.Spawned, r.Stats.Queued, 100*r.HandoffRatio())
	fmt.Fprintf(w, "  rejections   %d rejected, %d retried, %d gave up\n",
		r.Stats.Rejected, r.Retried, r.GaveUp)
	fmt.Fprintf(w, "  workers      %d started, %d handoff retries\n",
		r.Stats.WorkersStarted, r.Stats.HandoffRetries)
	status.Fprintf(w, "  terminated   %t\n", r.Terminated)
}
