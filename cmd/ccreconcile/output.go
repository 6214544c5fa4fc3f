package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type renderOptions struct {
	Format   string
	ShowDiff bool
	NoColor  bool
}

type palette struct {
	changed lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
	title   lipgloss.Style
}

func newPalette(noColor bool) palette {
	if noColor {
		plain := lipgloss.NewStyle()
		return palette{changed: plain, ok: plain, failed: plain, muted: plain, title: plain}
	}
	return palette{
		changed: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}
}

func (p palette) action(a reconcile.Action) string {
	switch {
	case a == reconcile.ActionFailed:
		return p.failed.Render(string(a))
	case a.IsChange():
		return p.changed.Render(string(a))
	}
	return p.muted.Render(string(a))
}

func (p palette) status(s reconcile.Status) string {
	switch s {
	case reconcile.StatusFailed:
		return p.failed.Render(string(s))
	case reconcile.StatusSuccess:
		return p.changed.Render(string(s))
	}
	return p.ok.Render(string(s))
}

func tableStyle(noColor bool) table.Style {
	style := table.StyleRounded
	if !noColor {
		style.Color.Header = text.Colors{text.FgHiCyan}
	}
	return style
}

// renderReport writes the pass report as JSON or as a table followed by a
// summary line.
func renderReport(w io.Writer, report reconcile.Report, opts renderOptions) error {
	if opts.Format == formatJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	p := newPalette(opts.NoColor)

	if len(report.Response) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(tableStyle(opts.NoColor))
		t.AppendHeader(table.Row{"#", "KIND", "NATURAL KEY", "ACTION", "MESSAGE"})
		for i, entry := range report.Response {
			message := entry.Message
			if entry.Error != nil {
				message = fmt.Sprintf("%s: %s", entry.Error.Kind, entry.Error.Message)
			}
			t.AppendRow(table.Row{i, entry.Kind, entry.NaturalKey, p.action(entry.Action), message})
		}
		t.Render()
	}

	if opts.ShowDiff {
		for _, entry := range report.Response {
			if entry.Diff == "" {
				continue
			}
			fmt.Fprintf(w, "\n%s\n%s", p.title.Render(fmt.Sprintf("%s %s", entry.Kind, entry.NaturalKey)), entry.Diff)
		}
	}

	_, err := fmt.Fprintf(w, "\n%s %s\n", p.status(report.Status), report.Msg)
	return err
}
