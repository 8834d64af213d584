package output

import (
	"io"
	"os"
)

// Printer renders command results.
type Printer interface {
	Print(v any) error
}

// New returns the JSON printer when asJSON is set and the human one otherwise.
func New(asJSON bool, out io.Writer) Printer {
	if out == nil {
		out = os.Stdout
	}
	if asJSON {
		return JSONPrinter{Out: out}
	}
	return HumanPrinter{Out: out}
}
