package console

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// Opener opens a URL in the user's browser
type Opener func(ctx context.Context, url string) error

// BrowserOpener uses the platform's URL handler
func BrowserOpener(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}

// Navigator shows where the report lives and optionally opens it
type Navigator struct {
	w    io.Writer
	open Opener
	last string
}

// NewNavigator creates a navigator. open may be nil to only print the link.
func NewNavigator(w io.Writer, open Opener) *Navigator {
	return &Navigator{w: w, open: open}
}

// Navigate prints target and opens it when an opener is set
func (n *Navigator) Navigate(ctx context.Context, target string) error {
	n.last = target
	if _, err := fmt.Fprintf(n.w, "\nYour interview report: %s\n", target); err != nil {
		return err
	}
	if n.open == nil {
		return nil
	}
	return n.open(ctx, target)
}

// Last returns the most recent navigation target
func (n *Navigator) Last() string {
	return n.last
}
