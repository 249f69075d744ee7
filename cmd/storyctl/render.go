package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"storyweave/models"
	"storyweave/story"
)

// terminalRenderer prints the current page whenever it changes.
type terminalRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func (r *terminalRenderer) OnChange(v story.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := describeCurrent(v)
	if line == r.last {
		return
	}
	r.last = line
	fmt.Fprintln(r.out, line)
}

func describeCurrent(v story.View) string {
	if v.Page == nil {
		return v.Placeholder
	}
	p := v.Page
	head := fmt.Sprintf("[%d/%d] %s", v.Current+1, v.Dots, p.Type.Label())
	if p.Type == models.PageText {
		return head + ": " + p.Text
	}
	switch {
	case v.Source == nil:
		return head + ": " + v.Placeholder
	case v.Source.Blob != nil:
		return fmt.Sprintf("%s: %s (%s, %s)", head, v.Source.Blob.FileName, v.Source.Blob.Mime,
			humanize.Bytes(uint64(len(v.Source.Blob.Data))))
	default:
		return head + ": " + v.Source.URL
	}
}

func printPages(w io.Writer, v story.View) {
	if len(v.Pages) == 0 {
		fmt.Fprintln(w, v.Placeholder)
		return
	}
	for _, p := range v.Pages {
		marker := " "
		if p.Active {
			marker = "*"
		}
		dur := fmt.Sprintf("%gs", p.DurationSec)
		if p.DurationIsDefault {
			dur += " (default)"
		}
		fmt.Fprintf(w, "%s %3d  %-5s  %-14s  %s\n", marker, p.Index, p.Label, dur, p.Summary)
	}
}

func printSettings(w io.Writer, s models.Settings) {
	autoplay := "off"
	if s.AutoPlay {
		autoplay = "on"
	}
	fmt.Fprintln(w, strings.Join([]string{
		"autoplay:  " + autoplay,
		fmt.Sprintf("interval:  %gs", s.AutoPlayIntervalSec),
		fmt.Sprintf("text size: %d", s.TextSize),
	}, "\n"))
}
