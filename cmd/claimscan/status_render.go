package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// statusKind selects the bracket label and color of a rendered status line.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

var kindStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {label: "INFO", color: "\x1b[34m"},
	statusOK:    {label: "OK", color: "\x1b[32m"},
	statusWarn:  {label: "WARN", color: "\x1b[33m"},
	statusError: {label: "ERROR", color: "\x1b[31m"},
}

// renderStatusLine formats one indented "Label: [KIND] message" line, padding
// the label column so values line up within a section.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := kindStyles[kind]
	value := "[" + style.label + "]"
	if message != "" {
		value += " " + message
	}
	line := fmt.Sprintf("  %-20s %s", label+":", value)
	if colorize && style.color != "" {
		return style.color + line + ansiReset
	}
	return line
}

// renderSectionHeader produces the section title with an underline rule.
func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		blue := kindStyles[statusInfo].color
		return []string{blue + title + ansiReset, blue + rule + ansiReset}
	}
	return []string{title, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
