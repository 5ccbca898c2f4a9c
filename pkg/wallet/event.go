// Package wallet holds the event and view types of the credential wallet core
// driven by the effectshell binary.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// Event tags, in the order the core declares its shell-facing events.
const (
	tagReady uint32 = iota
	tagSelectCredential
	tagDeleteCredential
	tagScanIssuanceOffer
	tagIssuanceOffer
	tagIncrement
	tagDecrement
	tagStartWatch
)

// Event is a shell-originated input to the wallet core.
type Event interface {
	wire.Marshaler
	Name() string
}

// Ready is sent once when the front end has loaded.
type Ready struct{}

type SelectCredential struct{ ID string }

type DeleteCredential struct{ ID string }

type ScanIssuanceOffer struct{}

// IssuanceOffer carries the raw contents of a scanned offer QR code.
type IssuanceOffer struct{ Offer string }

type Increment struct{}

type Decrement struct{}

// StartWatch opens the core's server-sent-events subscription.
type StartWatch struct{}

func (Ready) Name() string             { return "ready" }
func (SelectCredential) Name() string  { return "select" }
func (DeleteCredential) Name() string  { return "delete" }
func (ScanIssuanceOffer) Name() string { return "scan" }
func (IssuanceOffer) Name() string     { return "offer" }
func (Increment) Name() string         { return "increment" }
func (Decrement) Name() string         { return "decrement" }
func (StartWatch) Name() string        { return "watch" }

func (Ready) MarshalWire(e *wire.Encoder) { e.Variant(tagReady) }

func (ev SelectCredential) MarshalWire(e *wire.Encoder) {
	e.Variant(tagSelectCredential)
	e.String(ev.ID)
}

func (ev DeleteCredential) MarshalWire(e *wire.Encoder) {
	e.Variant(tagDeleteCredential)
	e.String(ev.ID)
}

func (ScanIssuanceOffer) MarshalWire(e *wire.Encoder) { e.Variant(tagScanIssuanceOffer) }

func (ev IssuanceOffer) MarshalWire(e *wire.Encoder) {
	e.Variant(tagIssuanceOffer)
	e.String(ev.Offer)
}

func (Increment) MarshalWire(e *wire.Encoder)  { e.Variant(tagIncrement) }
func (Decrement) MarshalWire(e *wire.Encoder)  { e.Variant(tagDecrement) }
func (StartWatch) MarshalWire(e *wire.Encoder) { e.Variant(tagStartWatch) }

// ErrUnknownCommand is returned by ParseEvent for an unrecognised command word.
var ErrUnknownCommand = errors.New("wallet: unknown command")

// ParseEvent turns one command line ("select <id>", "offer <payload>", ...)
// into an Event. The argument of select, delete and offer is the rest of the
// line with surrounding whitespace removed.
func ParseEvent(line string) (Event, error) {
	line = strings.TrimSpace(line)
	word, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	needArg := func(ev Event) (Event, error) {
		if arg == "" {
			return nil, fmt.Errorf("wallet: %s requires an argument", word)
		}
		return ev, nil
	}

	switch strings.ToLower(word) {
	case "ready":
		return Ready{}, nil
	case "select":
		return needArg(SelectCredential{ID: arg})
	case "delete":
		return needArg(DeleteCredential{ID: arg})
	case "scan":
		return ScanIssuanceOffer{}, nil
	case "offer":
		return needArg(IssuanceOffer{Offer: arg})
	case "increment":
		return Increment{}, nil
	case "decrement":
		return Decrement{}, nil
	case "watch":
		return StartWatch{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, word)
	}
}
