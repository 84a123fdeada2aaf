package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/gamma-omg/rag-ledger/blocks"
	"github.com/gamma-omg/rag-ledger/docstore"
	"github.com/gamma-omg/rag-ledger/ledger"
)

const snippetLen = 300

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Faint(true)
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func renderResults(w io.Writer, res []docstore.SearchResult) {
	if len(res) == 0 {
		fmt.Fprintln(w, warnStyle.Render("Nothing found."))
		return
	}

	for i, r := range res {
		title := r.Metadata.BlockTitle
		if title == "" {
			title = blocks.Untitled
		}

		fmt.Fprintf(w, "\n%d. %s\n", i+1, titleStyle.Render(title))
		fmt.Fprintf(w, "   %s %s\n", labelStyle.Render("File:"), orDash(r.Metadata.File))
		fmt.Fprintf(w, "   %s %s\n", labelStyle.Render("ID:"), idStyle.Render(r.ID))
		fmt.Fprintf(w, "   %s %.3f\n", labelStyle.Render("Score:"), r.Score)
		fmt.Fprintf(w, "   %s %s\n", labelStyle.Render("Snippet:"), blocks.Snippet(r.Content, snippetLen))
	}
}

func renderRecord(w io.Writer, r ledger.Record) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("ID:"), idStyle.Render(r.ID))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("File:"), orDash(r.Metadata.File))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Block title:"), titleStyle.Render(orDash(r.Metadata.BlockTitle)))
	fmt.Fprintf(w, "%s\n%s\n", labelStyle.Render("Content:"), r.Content)
}

func renderAdded(w io.Writer, records []ledger.Record) {
	fmt.Fprintf(w, "Added %d block(s).\n", len(records))
	for _, r := range records {
		fmt.Fprintf(w, "- %s  %s (file: %s)\n", idStyle.Render(r.ID), titleStyle.Render(r.Metadata.BlockTitle), orDash(r.Metadata.File))
	}
}

func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errStyle.Render("Error: "+err.Error()))
}
