package game

import "strings"

// Command is a closed set of meta-commands.
type Command int

const (
	CmdUnknown Command = iota
	CmdHint
	CmdStatus
	CmdHistory
	CmdQuit
	CmdHelp
)

var commandTokens = map[string]Command{
	"hint":    CmdHint,
	"h":       CmdHint,
	"status":  CmdStatus,
	"s":       CmdStatus,
	"history": CmdHistory,
	"hist":    CmdHistory,
	"quit":    CmdQuit,
	"exit":    CmdQuit,
	"q":       CmdQuit,
	"help":    CmdHelp,
	"?":       CmdHelp,
}

// ParseCommand strips the command prefix, lower-cases and takes the first
// word. The token is returned for echoing unknown commands.
func ParseCommand(text string, prefixes []string) (Command, string) {
	s := strings.TrimSpace(text)
	for {
		trimmed := s
		for _, p := range prefixes {
			trimmed = strings.TrimPrefix(trimmed, p)
		}
		if trimmed == s {
			break
		}
		s = trimmed
	}
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return CmdUnknown, ""
	}
	return commandTokens[fields[0]], fields[0]
}

func (c Command) String() string {
	switch c {
	case CmdHint:
		return "hint"
	case CmdStatus:
		return "status"
	case CmdHistory:
		return "history"
	case CmdQuit:
		return "quit"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}
