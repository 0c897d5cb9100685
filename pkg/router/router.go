package router

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Route is a screen of the swap flow
type Route string

const (
	BuildQuote       Route = "/swaps/build-quote"
	LoadingQuotes    Route = "/swaps/loading-quotes"
	ViewQuote        Route = "/swaps/view-quote"
	AwaitingSwap     Route = "/swaps/awaiting-swap"
	SwapComplete     Route = "/swaps/swap-complete"
	SwapsError       Route = "/swaps/swaps-error"
	SwapsMaintenance Route = "/swaps/maintenance"
)

// Navigator moves the user between screens
type Navigator interface {
	Navigate(route Route)
}

// NavigatorFunc adapts a function to a Navigator
type NavigatorFunc func(Route)

func (f NavigatorFunc) Navigate(route Route) { f(route) }

// CLIRouter renders routes on a terminal: waiting screens get a spinner,
// terminal screens a coloured status line
type CLIRouter struct {
	out   io.Writer
	quiet bool

	mu      sync.Mutex
	current Route
	spin    *spinner.Spinner
	history []Route
}

// NewCLIRouter creates a router writing to out. Quiet suppresses all output.
func NewCLIRouter(out io.Writer, quiet bool) *CLIRouter {
	if out == nil {
		out = os.Stdout
	}
	return &CLIRouter{out: out, quiet: quiet}
}

// Navigate switches to route
func (r *CLIRouter) Navigate(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopSpinner()
	r.current = route
	r.history = append(r.history, route)

	if r.quiet {
		return
	}

	switch route {
	case LoadingQuotes:
		r.startSpinner(" Fetching quotes...")
	case AwaitingSwap:
		r.startSpinner(" Waiting for swap transactions...")
	case SwapComplete:
		color.New(color.FgGreen).Fprintln(r.out, "\n✓ Swap complete")
	case SwapsError:
		color.New(color.FgRed).Fprintln(r.out, "\nSwap failed")
	case SwapsMaintenance:
		color.New(color.FgYellow).Fprintln(r.out, "\nSwaps are under maintenance, try again later")
	case ViewQuote, BuildQuote:
		// the command prints these screens itself
	default:
		fmt.Fprintf(r.out, "\n%s\n", route)
	}
}

// Current is the last route navigated to
func (r *CLIRouter) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History lists every route navigated to, in order
func (r *CLIRouter) History() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.history...)
}

// Close stops any running spinner
func (r *CLIRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinner()
}

func (r *CLIRouter) startSpinner(suffix string) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(r.out))
	s.Suffix = suffix
	s.Start()
	r.spin = s
}

func (r *CLIRouter) stopSpinner() {
	if r.spin != nil {
		r.spin.Stop()
		r.spin = nil
	}
}
