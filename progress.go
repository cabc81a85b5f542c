package main

import (
	"fmt"
	"io"
)

// progressMeter prints one digit per `every` rows and the running count
// every tenth digit, e.g. "123456789 10 123".
type progressMeter struct {
	w     io.Writer
	every int
	rows  int
}

func newProgressMeter(w io.Writer, every int) *progressMeter {
	if every <= 0 {
		every = 1000
	}
	return &progressMeter{w: w, every: every}
}

func (p *progressMeter) tick() {
	if p == nil {
		return
	}
	p.rows++
	if p.rows%p.every != 0 {
		return
	}
	n := p.rows / p.every
	if n%10 == 0 {
		fmt.Fprintf(p.w, " %d ", n)
	} else {
		fmt.Fprintf(p.w, "%d", n%10)
	}
}

// done ends the progress line and resets the count for the next table.
func (p *progressMeter) done() {
	if p == nil {
		return
	}
	fmt.Fprintln(p.w)
	p.rows = 0
}
