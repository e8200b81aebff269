package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/gabapcia/solcustody/internal/progress"
)

// printer writes command results as JSON and progress as plain lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

var _ progress.Observer = (*printer)(nil)

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) line(prefix, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", prefix, msg)
}

func (p *printer) Step(_ context.Context, msg string) {
	p.line("==>", msg)
}

func (p *printer) Success(_ context.Context, msg string) {
	p.line("ok:", msg)
}

func (p *printer) Fail(_ context.Context, msg string) {
	p.line("error:", msg)
}

// JSON prints v indented.
func (p *printer) JSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
