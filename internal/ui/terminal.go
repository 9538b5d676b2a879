package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/mattn/go-isatty"
)

const (
	textPromptTemplateConstant            = "%s: "
	textPromptWithDefaultTemplateConstant = "%s [%s]: "
	textPromptWithHintTemplateConstant    = "%s (%s): "
	confirmPromptTemplateConstant         = "%s? [y/N]: "
	selectionPromptTemplateConstant       = "%s [1-%d]: "
	numberedChoiceTemplateConstant        = "%3d) %s\n"
	choiceDescriptionTemplateConstant     = "     %s\n"
	finderPromptSuffixConstant            = "> "
	previewSeparatorConstant              = "\n\n"
	affirmativeShortAnswerConstant        = "y"
	affirmativeLongAnswerConstant         = "yes"
	lineTerminatorsConstant               = "\r\n"
	errorColorConstant                    = "9"
	infoColorConstant                     = "10"
	statusColorConstant                   = "12"
)

// Choice is a selectable item.
type Choice struct {
	Label       string
	Description string
	Detail      string
}

// TextPrompt describes a free-text question.
type TextPrompt struct {
	Message     string
	Placeholder string
	Default     string
}

// ChoiceFinder selects one choice interactively and returns its index.
type ChoiceFinder func(prompt string, choices []Choice) (int, error)

var (
	// ErrSelectionAborted is returned by a ChoiceFinder when the user dismisses the picker.
	ErrSelectionAborted = errors.New("selection aborted")
	// ErrInputClosed indicates the input stream ended before an answer was given.
	ErrInputClosed = errors.New("input closed before an answer was given")
)

// TerminalOption customizes a TerminalInteraction.
type TerminalOption func(*TerminalInteraction)

// WithInteractiveTerminal toggles the full-screen finder used for selections.
func WithInteractiveTerminal(interactive bool) TerminalOption {
	return func(interaction *TerminalInteraction) {
		interaction.interactive = interactive
	}
}

// WithChoiceFinder replaces the fuzzy finder used on interactive terminals.
func WithChoiceFinder(finder ChoiceFinder) TerminalOption {
	return func(interaction *TerminalInteraction) {
		if finder != nil {
			interaction.finder = finder
		}
	}
}

// TerminalInteraction prompts and notifies through a line-oriented terminal.
type TerminalInteraction struct {
	input       *bufio.Reader
	output      io.Writer
	interactive bool
	finder      ChoiceFinder
	errorStyle  lipgloss.Style
	infoStyle   lipgloss.Style
	statusStyle lipgloss.Style
}

// NewTerminalInteraction constructs a TerminalInteraction reading answers from input and writing to output.
func NewTerminalInteraction(input io.Reader, output io.Writer, options ...TerminalOption) *TerminalInteraction {
	renderer := lipgloss.NewRenderer(output)
	interaction := &TerminalInteraction{
		input:       bufio.NewReader(input),
		output:      output,
		finder:      FuzzyChoiceFinder,
		errorStyle:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(errorColorConstant)),
		infoStyle:   renderer.NewStyle().Foreground(lipgloss.Color(infoColorConstant)),
		statusStyle: renderer.NewStyle().Faint(true).Foreground(lipgloss.Color(statusColorConstant)),
	}
	for _, option := range options {
		option(interaction)
	}
	return interaction
}

// IsInteractiveTerminal reports whether both streams are attached to a terminal.
func IsInteractiveTerminal(input *os.File, output *os.File) bool {
	if input == nil || output == nil {
		return false
	}
	return isTerminal(input.Fd()) && isTerminal(output.Fd())
}

func isTerminal(descriptor uintptr) bool {
	return isatty.IsTerminal(descriptor) || isatty.IsCygwinTerminal(descriptor)
}

// PromptText asks a free-text question. An empty answer selects the default; closed input yields ErrInputClosed.
func (interaction *TerminalInteraction) PromptText(executionContext context.Context, prompt TextPrompt) (string, error) {
	switch {
	case len(prompt.Default) > 0:
		interaction.write(fmt.Sprintf(textPromptWithDefaultTemplateConstant, prompt.Message, prompt.Default))
	case len(prompt.Placeholder) > 0:
		interaction.write(fmt.Sprintf(textPromptWithHintTemplateConstant, prompt.Message, prompt.Placeholder))
	default:
		interaction.write(fmt.Sprintf(textPromptTemplateConstant, prompt.Message))
	}

	answer, readError := interaction.readLine(executionContext)
	if readError != nil {
		return "", readError
	}
	if len(answer) == 0 {
		return prompt.Default, nil
	}
	return answer, nil
}

// Confirm offers an action and reports whether the user accepted it.
func (interaction *TerminalInteraction) Confirm(executionContext context.Context, actionLabel string) (bool, error) {
	interaction.write(fmt.Sprintf(confirmPromptTemplateConstant, actionLabel))

	answer, readError := interaction.readLine(executionContext)
	if errors.Is(readError, ErrInputClosed) {
		return false, nil
	}
	if readError != nil {
		return false, readError
	}
	normalizedAnswer := strings.ToLower(strings.TrimSpace(answer))
	return normalizedAnswer == affirmativeShortAnswerConstant || normalizedAnswer == affirmativeLongAnswerConstant, nil
}

// SelectChoice asks the user to pick one choice. The boolean is false when nothing was selected.
func (interaction *TerminalInteraction) SelectChoice(executionContext context.Context, prompt string, choices []Choice) (int, bool, error) {
	if len(choices) == 0 {
		return -1, false, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return -1, false, contextError
	}

	if interaction.interactive {
		selectedIndex, finderError := interaction.finder(prompt, choices)
		if finderError != nil {
			if errors.Is(finderError, ErrSelectionAborted) {
				return -1, false, nil
			}
			return -1, false, finderError
		}
		return selectedIndex, true, nil
	}

	for index, choice := range choices {
		interaction.write(fmt.Sprintf(numberedChoiceTemplateConstant, index+1, choice.Label))
		if len(choice.Description) > 0 {
			interaction.write(fmt.Sprintf(choiceDescriptionTemplateConstant, choice.Description))
		}
	}
	interaction.write(fmt.Sprintf(selectionPromptTemplateConstant, prompt, len(choices)))

	answer, readError := interaction.readLine(executionContext)
	if errors.Is(readError, ErrInputClosed) {
		return -1, false, nil
	}
	if readError != nil {
		return -1, false, readError
	}
	selectedNumber, conversionError := strconv.Atoi(strings.TrimSpace(answer))
	if conversionError != nil || selectedNumber < 1 || selectedNumber > len(choices) {
		return -1, false, nil
	}
	return selectedNumber - 1, true, nil
}

// ShowError presents an error notice.
func (interaction *TerminalInteraction) ShowError(message string) {
	interaction.write(interaction.errorStyle.Render(message) + "\n")
}

// ShowInfo presents an informational notice.
func (interaction *TerminalInteraction) ShowInfo(message string) {
	interaction.write(interaction.infoStyle.Render(message) + "\n")
}

// SetStatus presents a transient progress notice.
func (interaction *TerminalInteraction) SetStatus(message string) {
	interaction.write(interaction.statusStyle.Render(message) + "\n")
}

func (interaction *TerminalInteraction) write(text string) {
	_, _ = io.WriteString(interaction.output, text)
}

// readLine returns the next line without its terminator. End of input with nothing read yields ErrInputClosed.
func (interaction *TerminalInteraction) readLine(executionContext context.Context) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	line, readError := interaction.input.ReadString('\n')
	if readError != nil && !errors.Is(readError, io.EOF) {
		return "", readError
	}
	if errors.Is(readError, io.EOF) && len(line) == 0 {
		interaction.write("\n")
		return "", ErrInputClosed
	}
	return strings.TrimRight(line, lineTerminatorsConstant), nil
}

// FuzzyChoiceFinder selects a choice with a full-screen fuzzy finder that previews descriptions and details.
func FuzzyChoiceFinder(prompt string, choices []Choice) (int, error) {
	selectedIndex, finderError := fuzzyfinder.Find(
		choices,
		func(index int) string {
			return choices[index].Label
		},
		fuzzyfinder.WithPromptString(prompt+finderPromptSuffixConstant),
		fuzzyfinder.WithPreviewWindow(func(index, width, height int) string {
			if index < 0 || index >= len(choices) {
				return ""
			}
			return strings.TrimSpace(choices[index].Description + previewSeparatorConstant + choices[index].Detail)
		}),
	)
	if finderError != nil {
		if errors.Is(finderError, fuzzyfinder.ErrAbort) {
			return -1, ErrSelectionAborted
		}
		return -1, finderError
	}
	return selectedIndex, nil
}
