package publisher

import (
	"context"
	"fmt"
	"io"
)

// Console writes the rendered post to an io.Writer (stdout in production).
type Console struct {
	w io.Writer
}

// NewConsole returns a Console publisher writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Publish(_ context.Context, renderedPost string) error {
	_, err := fmt.Fprintln(c.w, renderedPost)
	return publishErr(c.Name(), err)
}
