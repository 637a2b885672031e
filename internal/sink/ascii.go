// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muonpi/cluster/internal/muon"
)

// ASCII is a human-readable sink for finalized coincidence events,
// enabled by the --debug flag in place of (or alongside) the
// time-series and message-bus sinks.
type ASCII struct {
	mu  sync.Mutex
	out io.Writer
}

// NewASCII wraps out (typically os.Stderr) as an ASCII sink.
func NewASCII(out io.Writer) *ASCII {
	return &ASCII{out: out}
}

// Submit implements pipeline.Sink[*muon.Event].
func (a *ASCII) Submit(e *muon.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "[%s] event %x multiplicity=%d span=%dns stations=",
		time.Now().UTC().Format(time.RFC3339), e.EventHash, e.Multiplicity(), e.EndNs-e.StartNs)
	for i, h := range e.Hits {
		if i > 0 {
			fmt.Fprint(a.out, ",")
		}
		fmt.Fprintf(a.out, "%x", h.StationHash)
	}
	fmt.Fprintln(a.out)
}

// SubmitTrigger prints a station trigger transition.
func (a *ASCII) SubmitTrigger(user, station string, t *muon.Transition) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "[%s] trigger %s/%s %s -> %s (%s)\n",
		time.Now().UTC().Format(time.RFC3339), user, station, t.From, t.To, t.Event)
}
