package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Confirmer prompts a human for a y/n/s/q decision on a risky operation.
type Confirmer struct {
	in     *bufio.Reader
	out    io.Writer
	Timeout time.Duration
}

// NewConfirmer builds a Confirmer reading from in and writing prompts to out.
func NewConfirmer(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{in: bufio.NewReader(in), out: out, Timeout: DefaultConfirmTimeout}
}

// Confirm presents op and its risk assessment, then blocks for a
// response. Timeout, EOF, or a broken stream are all treated as deny.
func (c *Confirmer) Confirm(ctx context.Context, op Operation, risk RiskAssessment) (bool, string) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.printSummary(op, risk)

	respCh := make(chan ConfirmResponse, 1)
	errCh := make(chan error, 1)
	go c.readLoop(respCh, errCh)

	for {
		select {
		case resp := <-respCh:
			switch resp {
			case ConfirmYes:
				return true, "user approved"
			case ConfirmNo:
				return false, "user denied"
			case ConfirmQuit:
				return false, "cancelled"
			case ConfirmShow:
				c.printDetail(op, risk)
				continue
			default:
				fmt.Fprintln(c.out, "please respond y/n/s/q")
				continue
			}
		case <-errCh:
			return false, "input stream closed"
		case <-cctx.Done():
			return false, "confirmation timed out"
		}
	}
}

func (c *Confirmer) readLoop(respCh chan<- ConfirmResponse, errCh chan<- error) {
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			errCh <- err
			return
		}
		line = strings.ToLower(strings.TrimSpace(line))
		respCh <- ConfirmResponse(line)
	}
}

func (c *Confirmer) printSummary(op Operation, risk RiskAssessment) {
	fmt.Fprintf(c.out, "approval requested: %s %s (risk=%s score=%.0f)\n",
		op.Type, op.Target, risk.Level, risk.Score)
	fmt.Fprintln(c.out, "[y]es / [n]o / [s]how detail / [q]uit")
}

func (c *Confirmer) printDetail(op Operation, risk RiskAssessment) {
	fmt.Fprintf(c.out, "description: %s\n", op.Description)
	for _, f := range risk.Factors {
		fmt.Fprintf(c.out, "  - %s: %s (severity %.0f)\n", f.Category, f.Description, f.Severity)
	}
	fmt.Fprintln(c.out, "[y]es / [n]o / [q]uit")
}
