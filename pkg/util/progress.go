package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ProgressBar provides a simple terminal progress bar over item counts
type ProgressBar struct {
	mu       sync.Mutex
	total    int
	current  int
	start    time.Time
	prefix   string
	width    int
	writer   io.Writer
	lastDraw time.Time
	enabled  bool
}

// NewProgressBar creates a new progress bar. Drawing is disabled unless
// writer is a terminal, so piped output stays clean.
func NewProgressBar(total int, prefix string, writer io.Writer) *ProgressBar {
	return &ProgressBar{
		total:   total,
		prefix:  prefix,
		width:   40,
		writer:  writer,
		start:   time.Now(),
		enabled: IsTerminal(writer),
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Add increments the progress
func (p *ProgressBar) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += n
	if p.current > p.total {
		p.current = p.total
	}

	// Throttle updates to avoid excessive redraws
	if time.Since(p.lastDraw) < 100*time.Millisecond && p.current < p.total {
		return
	}

	p.draw()
	p.lastDraw = time.Now()
}

// Current returns the number of completed items
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.draw()
	if p.enabled {
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressBar) draw() {
	if !p.enabled || p.total <= 0 {
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	filled := p.width * p.current / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	eta := ""
	elapsed := time.Since(p.start)
	if p.current > 0 && p.current < p.total {
		perItem := elapsed / time.Duration(p.current)
		eta = " ETA: " + FormatDuration(perItem*time.Duration(p.total-p.current))
	}

	fmt.Fprintf(p.writer, "\r%s [%s] %.1f%% %d/%d%s", p.prefix, bar, percent, p.current, p.total, eta)
}

// FormatDuration formats a duration to a human-readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
