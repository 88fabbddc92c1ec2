package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pbaille/journal/internal/bucket"
	"github.com/pbaille/journal/internal/domain"
	"github.com/pbaille/journal/internal/mirror"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	entryStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func renderFeed(w io.Writer, entries []domain.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, faintStyle.Render("Silence."))
		return
	}

	for i, group := range bucket.GroupEntries(entries, now) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, labelStyle.Render(strings.ToUpper(string(group.Label))))
		for _, e := range group.Entries {
			fmt.Fprintln(w, entryStyle.Render(e.Text))
		}
	}
}

func renderLocked(w io.Writer, status mirror.Status) {
	fmt.Fprintln(w, "The mirror is still forming.")
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("%d / %d fragments collected", status.EntryCount, status.Threshold)))
}

func renderReflections(w io.Writer, status mirror.Status) {
	if len(status.Reflections) == 0 {
		fmt.Fprintln(w, faintStyle.Render("The surface is still."))
		return
	}

	for _, r := range status.Reflections {
		for _, p := range r.Patterns {
			fmt.Fprintln(w, entryStyle.Render(p))
		}
		fmt.Fprintln(w, faintStyle.Render("Reflected "+r.GeneratedAt.Local().Format("Jan 2, 2006 15:04")))
	}
}
