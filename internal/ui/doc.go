// Package ui presents prompts, selections and notices on the terminal.
//
// TerminalInteraction asks free-text and yes/no questions, selects pull
// requests with a fuzzy finder on interactive terminals and a numbered list
// elsewhere, and styles notices with lipgloss. ConsoleCommandEventLogger turns
// command lifecycle events into human-readable log lines.
package ui
