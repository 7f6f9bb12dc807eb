package control

import (
	"errors"
	"fmt"

	"github.com/creachadair/jrpc2"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
	ErrUnknownTask    = errors.New("no task has such name")
	ErrTaskRunning    = errors.New("task is already running")
	ErrStopping       = errors.New("daemon is stopping")
)

// JSON-RPC error codes used on the control socket.
const (
	codeUnknownTask    = jrpc2.Code(-32001)
	codeTaskRunning    = jrpc2.Code(-32002)
	codeStopping       = jrpc2.Code(-32003)
	codeUnknownCommand = jrpc2.Code(-32004)
	codeInvalidParams  = jrpc2.Code(-32602)
)

// ArgError reports a command with the wrong number of arguments.
type ArgError struct {
	Command string
	Want    string
}

func (e *ArgError) Error() string { return fmt.Sprintf("%q expects %s", e.Command, e.Want) }

func (e *ArgError) Is(target error) bool { return target == ErrBadArgument }

// ReplyText renders err the way the daemon answers a text command.
func ReplyText(err error) string {
	var ae *ArgError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return ae.Error() + "."
	case errors.Is(err, ErrUnknownTask):
		return "No task has such name."
	case errors.Is(err, ErrTaskRunning):
		return "The task is already running."
	case errors.Is(err, ErrUnknownCommand):
		return "However I don't understand it."
	case errors.Is(err, ErrStopping):
		return "The daemon is stopping."
	default:
		return "Error: " + err.Error()
	}
}

func toRPC(err error) error {
	if err == nil {
		return nil
	}
	code := jrpc2.Code(-32000)
	switch {
	case errors.Is(err, ErrUnknownTask):
		code = codeUnknownTask
	case errors.Is(err, ErrTaskRunning):
		code = codeTaskRunning
	case errors.Is(err, ErrStopping):
		code = codeStopping
	case errors.Is(err, ErrUnknownCommand):
		code = codeUnknownCommand
	case errors.Is(err, ErrBadArgument):
		code = codeInvalidParams
	}
	return &jrpc2.Error{Code: code, Message: ReplyText(err)}
}

// fromRPC maps control-socket error codes back to the package errors.
func fromRPC(err error) error {
	var re *jrpc2.Error
	if !errors.As(err, &re) {
		return err
	}
	switch re.Code {
	case codeUnknownTask:
		return ErrUnknownTask
	case codeTaskRunning:
		return ErrTaskRunning
	case codeStopping:
		return ErrStopping
	case codeUnknownCommand:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, re.Message)
	case codeInvalidParams:
		return fmt.Errorf("%w: %s", ErrBadArgument, re.Message)
	default:
		return err
	}
}
