// Package prompt runs the interactive European option pricer.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/contactkeval/bs-replay/internal/errors"
	"github.com/contactkeval/bs-replay/internal/pricing"
)

// Prompter wraps an input scanner and output writer for interactive prompts.
// Inject a custom reader/writer for tests.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter creates a Prompter using stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterFromReader(os.Stdin, os.Stdout)
}

// NewPrompterFromReader creates a Prompter with custom reader/writer.
func NewPrompterFromReader(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{
		scanner: bufio.NewScanner(r),
		out:     w,
	}
}

// String prompts for one trimmed line. Exhausted input is an error.
func (p *Prompter) String(prompt string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Float prompts for a float64.
func (p *Prompter) Float(prompt string) (float64, error) {
	s, err := p.String(prompt)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("could not convert %q to a number", s)
	}
	return v, nil
}

// ReadContract asks for S, K, T, r, sigma and the option type, in that order.
func (p *Prompter) ReadContract() (pricing.ContractParameters, error) {
	var c pricing.ContractParameters
	fields := []struct {
		prompt string
		dst    *float64
	}{
		{"Enter underlying asset price (S)", &c.Spot},
		{"Enter strike price (K)", &c.Strike},
		{"Enter time to maturity in years (T)", &c.Maturity},
		{"Enter risk-free interest rate (r) (e.g., 0.05 for 5%)", &c.Rate},
		{"Enter volatility (sigma) (e.g., 0.2 for 20%)", &c.Volatility},
	}
	for _, f := range fields {
		v, err := p.Float(f.prompt)
		if err != nil {
			return c, err
		}
		*f.dst = v
	}

	s, err := p.String("Enter option type (call/put)")
	if err != nil {
		return c, err
	}
	kind, err := pricing.ParseOptionKind(s)
	if err != nil {
		return c, err
	}
	c.Kind = kind
	return c, nil
}

// RunPricer prompts for one contract and prints its price or the error.
// The returned error is the same one printed, or nil.
func (p *Prompter) RunPricer() error {
	fmt.Fprintln(p.out, "European Option Pricing using the Black-Scholes Formula")
	fmt.Fprintln(p.out)

	c, err := p.ReadContract()
	if err == nil {
		var price float64
		if price, err = c.Price(); err == nil {
			fmt.Fprintf(p.out, "\nThe %s option price is: %.4f\n", c.Kind, price)
			return nil
		}
	}

	msg := err.Error()
	var e *errors.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	fmt.Fprintf(p.out, "\nError: %s\n", msg)
	return err
}
