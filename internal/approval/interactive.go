// Package approval presents an interactive item's pending UserActions to an
// operator and returns the chosen action id, for callers driving
// workflow.Engine.HandleUserAction from a terminal.
package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"timeline/internal/workflow"
)

// Presenter resolves an item's user_action_required Result to the chosen
// action's id. It never calls HandleUserAction itself — the caller (e.g.
// cmd/workflow-runner's REPL) owns the engine and makes that call.
type Presenter interface {
	Present(ctx context.Context, item workflow.Item, result workflow.Result) (actionID string, err error)
}

// TerminalPresenter renders the item and its available actions to stdout
// and prompts for a choice via promptui, falling back to rejection on
// timeout.
type TerminalPresenter struct {
	timeout      time.Duration
	colorEnabled bool
}

// NewTerminalPresenter constructs a TerminalPresenter. colorEnabled is
// normally term.IsTerminal(int(os.Stdout.Fd())) — callers decide, so tests
// can force it off.
func NewTerminalPresenter(timeout time.Duration, colorEnabled bool) *TerminalPresenter {
	return &TerminalPresenter{timeout: timeout, colorEnabled: colorEnabled}
}

// IsTerminalStdout reports whether fd is an interactive terminal; a
// convenience wrapper around golang.org/x/term for callers constructing a
// TerminalPresenter.
func IsTerminalStdout(fd int) bool {
	return term.IsTerminal(fd)
}

func (p *TerminalPresenter) Present(ctx context.Context, item workflow.Item, result workflow.Result) (string, error) {
	p.displayItem(item, result)

	if len(result.UserActions) == 0 {
		return "", fmt.Errorf("approval: item %s is user_action_required with no actions", item.ID())
	}

	type choice struct {
		action string
		err    error
	}
	choiceCh := make(chan choice, 1)

	go func() {
		actionID, err := p.promptSelect(result.UserActions)
		choiceCh <- choice{action: actionID, err: err}
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case c := <-choiceCh:
		return c.action, c.err
	case <-timeoutCtx.Done():
		fmt.Println()
		fmt.Println(p.colorize("Timeout - no action selected", color.FgRed))
		return "", fmt.Errorf("approval: timed out waiting for a choice on item %s", item.ID())
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *TerminalPresenter) displayItem(item workflow.Item, result workflow.Result) {
	separator := strings.Repeat("=", 80)

	fmt.Println()
	fmt.Println(p.colorize(separator, color.FgCyan))
	fmt.Println(p.colorize(fmt.Sprintf("Action required: %s", item.Title()), color.FgYellow, color.Bold))
	if item.Description() != "" {
		fmt.Println(p.colorize(item.Description(), color.FgWhite))
	}
	fmt.Println(p.colorize(separator, color.FgCyan))
	fmt.Println()
}

func (p *TerminalPresenter) promptSelect(actions []workflow.UserAction) (string, error) {
	labels := make([]string, 0, len(actions))
	byLabel := make(map[string]string, len(actions))
	for _, a := range actions {
		label := a.Label
		if a.Disabled {
			label += " (disabled)"
		}
		labels = append(labels, label)
		byLabel[label] = a.ID
	}

	sel := promptui.Select{
		Label: "Choice",
		Items: labels,
	}
	_, chosen, err := sel.Run()
	if err != nil {
		return "", fmt.Errorf("approval: prompt failed: %w", err)
	}
	id, ok := byLabel[chosen]
	if !ok {
		return "", fmt.Errorf("approval: unrecognized selection %q", chosen)
	}
	for _, a := range actions {
		if a.ID == id && a.Disabled {
			return "", fmt.Errorf("approval: action %s is disabled", id)
		}
	}
	return id, nil
}

// colorize applies color to text if color is enabled.
func (p *TerminalPresenter) colorize(text string, attributes ...color.Attribute) string {
	if !p.colorEnabled {
		return text
	}
	c := color.New(attributes...)
	return c.Sprint(text)
}

// NoOpPresenter always picks the first non-disabled action, for headless
// demos and tests that don't want to block on stdin.
type NoOpPresenter struct{}

// NewNoOpPresenter constructs a NoOpPresenter.
func NewNoOpPresenter() *NoOpPresenter { return &NoOpPresenter{} }

func (NoOpPresenter) Present(ctx context.Context, item workflow.Item, result workflow.Result) (string, error) {
	for _, a := range result.UserActions {
		if !a.Disabled {
			return a.ID, nil
		}
	}
	return "", fmt.Errorf("approval: item %s has no enabled actions", item.ID())
}
