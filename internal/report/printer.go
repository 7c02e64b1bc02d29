package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/imamik/nodeseed/internal/progress"
)

// Printer writes one human-readable line per progress event.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewPrinter creates a Printer. Without verbose, connection retries and
// poll events are left out.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, verbose: verbose}
}

// Event implements progress.Observer.
func (p *Printer) Event(e progress.Event) {
	if !p.verbose && (e.Type == progress.EventAddressPolling || e.Type == progress.EventBootstrapRetry) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, "%s %s\n", e.Timestamp.Format("15:04:05"), e)
}
