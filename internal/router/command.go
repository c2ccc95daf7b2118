package router

import "strings"

// command is the closed set of bot commands. Dispatch is a switch over
// this set, so adding a command without a handler fails loudly at review
// time instead of silently at runtime.
type command int

const (
	cmdUnknown command = iota
	cmdStart
	cmdHelp
	cmdBroadcast
	cmdExport
	cmdGraph
	cmdReset
)

// parseCommand splits "/name@bot args..." into the command and its raw
// argument text. ok is false for plain (non-slash) text.
func parseCommand(text string) (cmd command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return cmdUnknown, "", false
	}
	name := text[1:]
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		args = strings.TrimSpace(name[i+1:])
		name = name[:i]
	}
	// Group chats address commands as /name@botname.
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	switch strings.ToLower(name) {
	case "start":
		cmd = cmdStart
	case "helpme", "help":
		cmd = cmdHelp
	case "broadcast":
		cmd = cmdBroadcast
	case "export":
		cmd = cmdExport
	case "graph":
		cmd = cmdGraph
	case "reset":
		cmd = cmdReset
	default:
		cmd = cmdUnknown
	}
	return cmd, args, true
}

func (c command) String() string {
	switch c {
	case cmdStart:
		return "start"
	case cmdHelp:
		return "helpme"
	case cmdBroadcast:
		return "broadcast"
	case cmdExport:
		return "export"
	case cmdGraph:
		return "graph"
	case cmdReset:
		return "reset"
	default:
		return "unknown"
	}
}

const helpText = `/start - Start the bot
/broadcast <message> - Send a broadcast to all users (admin only, use \n for line breaks)
/export - Export your transactions as CSV
/graph - Get a chart of your transaction history
/reset - Reset your transactions
/helpme - Show this help message`
