package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// bookRow is the subset of a book the CLI lists.
type bookRow struct {
	ID      string   `json:"unique_id"`
	Title   string   `json:"Title"`
	Subject string   `json:"Subject"`
	Rating  *float64 `json:"rating"`
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

// printBooks writes one line per book: rank, rating, id and title.
func printBooks(w io.Writer, books []bookRow) {
	width := 0
	for _, b := range books {
		width = max(width, len(b.ID))
	}
	for i, b := range books {
		fmt.Fprintf(w, "%2d. %4s  %-*s  %s\n", i+1, formatRating(b.Rating), width, b.ID, colorize(colorBold, b.Title))
	}
}

func assistantLine(text string) string {
	return colorize(colorCyan, "assistant: ") + strings.TrimSpace(text)
}
