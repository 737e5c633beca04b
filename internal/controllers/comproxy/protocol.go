package comproxy

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Command is a request verb.
type Command string

// Request verbs.
const (
	CmdConnect    Command = "CONNECT"
	CmdDisconnect Command = "DISCONNECT"
	CmdStopServer Command = "STOP_SERVER"
	CmdWrite      Command = "WRITE"
	CmdReadLine   Command = "READLINE"
	CmdCheck      Command = "CHECK"
	CmdComPort    Command = "COMPORT"
)

// Reply tokens.
const (
	ReplyOK    = "OK"
	ReplyTrue  = "TRUE"
	ReplyFalse = "FALSE"
	replyError = "ERROR"
)

// maxLineLength bounds protocol lines and serial lines read by READLINE.
const maxLineLength = 64 * 1024

// Request is one client request.
type Request struct {
	Cmd     Command
	Payload []byte
}

// expectsReply reports whether the server answers the request.
func (r Request) expectsReply() bool {
	return r.Cmd != CmdDisconnect && r.Cmd != CmdStopServer
}

// Encode returns the request line without the terminating newline.
func (r Request) Encode() string {
	if r.Cmd == CmdWrite {
		return string(CmdWrite) + " " + base64.StdEncoding.EncodeToString(r.Payload)
	}
	return string(r.Cmd)
}

// ParseRequest parses a request line. Surrounding whitespace is ignored.
func ParseRequest(line string) (Request, error) {
	line = strings.TrimSpace(line)
	verb, arg, _ := strings.Cut(line, " ")

	switch Command(verb) {
	case CmdConnect, CmdDisconnect, CmdStopServer, CmdReadLine, CmdCheck, CmdComPort:
		return Request{Cmd: Command(verb)}, nil
	case CmdWrite:
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(arg))
		if err != nil {
			return Request{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
		return Request{Cmd: CmdWrite, Payload: data}, nil
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

// errorReply formats a failure reply. Newlines in err are flattened so the
// reply stays one line.
func errorReply(err error) string {
	msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(err.Error())
	return replyError + " " + msg
}

// parseReply turns an "ERROR <text>" reply into an error.
func parseReply(line string) (string, error) {
	if line == replyError || strings.HasPrefix(line, replyError+" ") {
		return "", fmt.Errorf("%w: %s", ErrRemote, strings.TrimSpace(strings.TrimPrefix(line, replyError)))
	}
	return line, nil
}

// DefaultSocketPath returns the socket path used for portName.
func DefaultSocketPath(portName string) string {
	base := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(strings.TrimLeft(portName, "/"))
	return filepath.Join(os.TempDir(), "feedback-comproxy-"+base+".sock")
}
