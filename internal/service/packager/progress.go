package packager

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progress counts finished targets. The bar itself is not safe for
// concurrent use, so every update goes through mu.
type progress struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	completed int
}

// newProgress creates the tracker. Its bar writes nowhere when progress
// output is disabled.
func newProgress(opts *Options, total int) *progress {
	var w io.Writer = io.Discard

	if opts.ShowProgress {
		w = opts.Progress
		if w == nil {
			w = os.Stderr
		}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionSetDescription("packaging"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	return &progress{bar: bar}
}

// done records a finished target and shows its name.
func (p *progress) done(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	p.bar.Describe(name)
	_ = p.bar.Add(1)
}

// finish completes the bar.
func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.bar.Finish()
}
