package summarize

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress is told when each video starts and finishes
type Progress interface {
	Begin(i, n int, name string)
	End(err error)
}

// LineProgress prints "Processing video i of n... Done!" lines
type LineProgress struct {
	w io.Writer
}

func NewLineProgress(w io.Writer) *LineProgress {
	return &LineProgress{w: w}
}

func (p *LineProgress) Begin(i, n int, _ string) {
	fmt.Fprintf(p.w, "Processing video %d of %d... ", i, n)
}

func (p *LineProgress) End(err error) {
	if err != nil {
		fmt.Fprintln(p.w, "Failed!")
		return
	}
	fmt.Fprintln(p.w, "Done!")
}

// BarProgress renders a progress bar over all videos of the run
type BarProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{w: w}
}

func (p *BarProgress) Begin(i, n int, name string) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(n,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	p.bar.Describe(name)
}

func (p *BarProgress) End(error) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
	if p.bar.IsFinished() {
		fmt.Fprintln(p.w)
	}
}
