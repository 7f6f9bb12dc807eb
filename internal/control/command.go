package control

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindNow Kind = iota + 1
	KindBusy
	KindUnbusy
	KindExit
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindNow:
		return "now"
	case KindBusy:
		return "busy"
	case KindUnbusy:
		return "unbusy"
	case KindExit:
		return "exit"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is a decoded control request. Arg is the task name for KindNow
// and empty otherwise.
type Command struct {
	Kind Kind
	Arg  string
}

func (c Command) String() string {
	if c.Arg == "" {
		return c.Kind.String()
	}
	return c.Kind.String() + " " + c.Arg
}

// ParseCommand decodes the text protocol: "now NAME", "busy", "unbusy",
// "exit" and "status". "firenow NAME" is accepted as an alias of "now".
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)
	word, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch word {
	case "now", "firenow":
		if arg == "" {
			return Command{}, &ArgError{Command: word, Want: "one argument"}
		}
		return Command{Kind: KindNow, Arg: arg}, nil
	case "busy":
		return Command{Kind: KindBusy}, nil
	case "unbusy":
		return Command{Kind: KindUnbusy}, nil
	case "status":
		return Command{Kind: KindStatus}, nil
	case "exit":
		if arg != "" {
			return Command{}, &ArgError{Command: word, Want: "no argument"}
		}
		return Command{Kind: KindExit}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, text)
	}
}
