package output

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh/spinner"
)

// RunWithSpinner runs action behind a spinner titled title. Without a
// terminal the action runs directly.
func RunWithSpinner(ctx context.Context, title string, action func(context.Context) error) error {
	if !IsTTY() {
		return action(ctx)
	}

	var actionErr error
	err := spinner.New().
		Title(title).
		Action(func() {
			actionErr = action(ctx)
		}).
		Run()
	if actionErr != nil {
		return actionErr
	}
	if err != nil {
		return fmt.Errorf("spinner error: %w", err)
	}
	return nil
}
