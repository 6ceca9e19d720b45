package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mcdev12/pitchtank/go/internal/models"
)

// ErrUnknownCommand is returned for a slash command the plain runner does not know.
var ErrUnknownCommand = errors.New("unknown command")

// PlainCommand is one parsed line of plain-mode input.
type PlainCommand struct {
	Name  string
	Args  []string
	Text  string
	Terms *models.CounterTerms
}

// ParsePlainCommand reads a line typed in plain mode. Lines without a leading
// slash are messages to the panel.
func ParsePlainCommand(line string) (PlainCommand, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return PlainCommand{Name: "say", Text: line}, nil
	}

	fields := strings.Fields(line)
	cmd := PlainCommand{Name: strings.TrimPrefix(fields[0], "/"), Args: fields[1:]}
	switch cmd.Name {
	case "end", "new", "quit", "help":
		return cmd, nil
	case "accept", "decline", "status":
		if len(cmd.Args) != 1 {
			return cmd, fmt.Errorf("/%s needs an id", cmd.Name)
		}
		return cmd, nil
	case "counter":
		if len(cmd.Args) != 3 {
			return cmd, ErrInvalidCounter
		}
		terms, err := ParseCounter(cmd.Args[1] + " " + cmd.Args[2])
		if err != nil {
			return cmd, err
		}
		cmd.Terms = &terms
		return cmd, nil
	case "pitch":
		if len(cmd.Args) < 3 {
			return cmd, errors.New("/pitch needs <amount> <equity> <company name>")
		}
		return cmd, nil
	}
	return cmd, fmt.Errorf("%w: /%s", ErrUnknownCommand, cmd.Name)
}

const plainHelp = `commands:
  /pitch <amount> <equity> <company>   enter the tank
  /end                                 end the pitch early
  /accept <offer-id>                   accept an offer
  /decline <offer-id>                  decline an offer
  /counter <offer-id> <amount> <eq>    counter an offer
  /status <shark-id>                   cycle a shark's status
  /new                                 start over after the session closes
  /quit                                exit
anything else is sent to the sharks`

// FallbackRunner drives a session over plain line-oriented IO when no
// terminal is attached.
type FallbackRunner struct {
	driver Driver
	in     io.Reader
	out    io.Writer
}

func NewFallbackRunner(driver Driver, in io.Reader, out io.Writer) *FallbackRunner {
	return &FallbackRunner{driver: driver, in: in, out: out}
}

// Run reads commands until EOF, /quit or ctx ends, printing transcript lines
// as snapshots arrive.
func (f *FallbackRunner) Run(ctx context.Context) error {
	updates, cancel := f.driver.Subscribe()
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(f.out, "Non-TTY environment detected. Type /help for commands.")

	printed := 0
	announced := make(map[string]bool)
	var phase models.Phase
	for {
		select {
		case <-ctx.Done():
			return nil

		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if len(s.Messages) < printed {
				printed = 0
				clear(announced)
			}
			for _, msg := range s.Messages[printed:] {
				fmt.Fprintln(f.out, plainLine(s, msg))
			}
			printed = len(s.Messages)
			for _, o := range s.Offers {
				if o.Status == models.OfferStatusPending && !announced[o.ID] {
					announced[o.ID] = true
					fmt.Fprintf(f.out, "offer %s: %s\n", o.ID, FormatOffer(o))
				}
			}
			if s.Phase != phase {
				phase = s.Phase
				fmt.Fprintf(f.out, "-- %s --\n", phaseLabel(phase))
				if phase == models.PhaseClosed && s.Outcome != nil {
					fmt.Fprintln(f.out, plainOutcome(*s.Outcome))
				}
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			quit, err := f.handle(ctx, line)
			if err != nil {
				fmt.Fprintf(f.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (f *FallbackRunner) handle(ctx context.Context, line string) (bool, error) {
	cmd, err := ParsePlainCommand(line)
	if err != nil {
		return false, err
	}
	switch cmd.Name {
	case "say":
		return false, f.driver.SendMessage(cmd.Text)
	case "pitch":
		amount, err := ParseAmount(cmd.Args[0])
		if err != nil {
			return false, err
		}
		var equity int
		if _, err := fmt.Sscanf(strings.TrimSuffix(cmd.Args[1], "%"), "%d", &equity); err != nil || equity < 1 || equity > 100 {
			return false, ErrInvalidEquity
		}
		return false, f.driver.Start(ctx, models.PitchData{
			CompanyName:   strings.Join(cmd.Args[2:], " "),
			AmountRaising: amount,
			EquityPercent: equity,
		}, nil)
	case "end":
		return false, f.driver.EndPitch()
	case "accept":
		return false, f.driver.RespondToOffer(cmd.Args[0], models.OfferActionAccept, nil)
	case "decline":
		return false, f.driver.RespondToOffer(cmd.Args[0], models.OfferActionDecline, nil)
	case "counter":
		return false, f.driver.RespondToOffer(cmd.Args[0], models.OfferActionCounter, cmd.Terms)
	case "status":
		return false, f.driver.CycleStatus(cmd.Args[0])
	case "new":
		return false, f.driver.Reset()
	case "help":
		fmt.Fprintln(f.out, plainHelp)
		return false, nil
	case "quit":
		return true, nil
	}
	return false, nil
}

func plainLine(s models.Session, msg models.Message) string {
	switch msg.Speaker {
	case models.SpeakerSystem:
		return "* " + msg.Text
	case models.SpeakerUser, "user":
		return "You: " + msg.Text
	}
	return displayNameFor(s, msg.Speaker, msg.Name) + ": " + msg.Text
}

func plainOutcome(o models.Outcome) string {
	if o.Result == models.OutcomeDeal && o.Deal != nil {
		return "DEAL! " + FormatOffer(*o.Deal)
	}
	return "NO DEAL. " + noDealSummary(o.Reason)
}
