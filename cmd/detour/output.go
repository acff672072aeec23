package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glimte/detour-go/internal/fixtures"
	"github.com/glimte/detour-go/patching"
)

var (
	passColor  = lipgloss.Color("#10B981")
	failColor  = lipgloss.Color("#EF4444")
	mutedColor = lipgloss.Color("#6B7280")
	titleColor = lipgloss.Color("#7C3AED")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(titleColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(passColor).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(failColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

type scenarioRow struct {
	scenario fixtures.Scenario
	err      error
}

// printScenarios writes the scenario table and returns the number of failures
func printScenarios(w io.Writer, rows []scenarioRow) int {
	fmt.Fprintln(w, titleStyle.Render("Finalizer scenarios"))
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-34s %-46s %-9s %-10s %-18s %s",
		"Original", "Finalizer", "Thrown", "Exception", "Result", "Status")))
	fmt.Fprintln(w, strings.Repeat("-", 126))

	failed := 0
	for _, r := range rows {
		s := r.scenario
		status := passStyle.Render("PASS")
		if r.err != nil {
			status = failStyle.Render("FAIL")
			failed++
		}
		fmt.Fprintf(w, "%-34s %-46s %-9s %-10s %-18s %s\n",
			s.Original, s.Finalizer, s.Want.Thrown, s.Want.Input, s.Want.Result, status)
		if r.err != nil {
			for _, line := range strings.Split(r.err.Error(), "\n") {
				fmt.Fprintln(w, mutedStyle.Render("    "+line))
			}
		}
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d passed, %d failed", len(rows)-failed, failed)
	if failed > 0 {
		fmt.Fprintln(w, failStyle.Render(summary))
	} else {
		fmt.Fprintln(w, passStyle.Render(summary))
	}
	return failed
}

func printManifestResult(w io.Writer, m *patching.Manifest, applied []*patching.Descriptor, err error) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Manifest %q", m.Owner)))

	if len(applied) > 0 {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-45s %-8s %-8s %-11s %-9s",
			"Method", "Prefix", "Postfix", "Transpiler", "Finalizer")))
		fmt.Fprintln(w, strings.Repeat("-", 85))
		for _, d := range applied {
			fmt.Fprintf(w, "%-45s %-8d %-8d %-11d %-9d\n",
				d.Original.Key(), len(d.Prefixes), len(d.Postfixes), len(d.Transpilers), len(d.Finalizers))
		}
	}

	if err == nil {
		fmt.Fprintln(w, passStyle.Render(fmt.Sprintf("%d of %d targets applied", len(applied), len(m.Patches))))
		return
	}

	fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("%d of %d targets applied", len(applied), len(m.Patches))))
	for _, e := range splitErrors(err) {
		fmt.Fprintln(w, mutedStyle.Render("  - "+e.Error()))
	}
}

// splitErrors flattens an errors.Join result
func splitErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
