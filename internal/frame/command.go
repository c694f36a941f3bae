package frame

import "strings"

// Verb identifies a text-command line exchanged on the tunnel before and
// during the handshake. Verbs are matched case-insensitively; arguments are
// split on runs of whitespace.
type Verb string

const (
	VerbReady     Verb = "READY"
	VerbChal      Verb = "CHAL"
	VerbAuthOK    Verb = "AUTH_OK"
	VerbAuthFail  Verb = "AUTH_FAIL"
	VerbHelloFail Verb = "HELLO_FAIL"
	VerbHello     Verb = "HELLO"
	VerbAuth      Verb = "AUTH"
)

// Command is a parsed text command line.
type Command struct {
	Verb Verb
	Args []string
}

// ParseCommand splits a text WS message into a verb and its arguments.
// Unknown verbs are returned with an empty Verb so callers can silently
// ignore them, matching the wire protocol's "unknown lines are ignored"
// rule.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}

	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	switch Verb(verb) {
	case VerbHello, VerbAuth:
		return Command{Verb: Verb(verb), Args: args}
	default:
		return Command{}
	}
}

// Ready renders the server's READY line.
func Ready() string { return string(VerbReady) }

// Chal renders the server's CHAL line carrying the base64 nonce.
func Chal(nonceB64 string) string { return string(VerbChal) + " " + nonceB64 }

// AuthOK renders the server's AUTH_OK line.
func AuthOK() string { return string(VerbAuthOK) }

// AuthFail renders the server's AUTH_FAIL line carrying a reason.
func AuthFail(reason string) string { return string(VerbAuthFail) + " " + reason }

// HelloFail renders the server's HELLO_FAIL line carrying a reason.
func HelloFail(reason string) string { return string(VerbHelloFail) + " " + reason }

// ParsedHello is a HELLO command split into its optional payload correlator
// and the device identifier, per the two accepted forms:
// "HELLO <deviceId>" or "HELLO <payloadId> <deviceId>".
type ParsedHello struct {
	PayloadID string // empty if the one-argument form was used
	DeviceID  string
}

// ParseHelloArgs interprets the arguments of a HELLO command.
func ParseHelloArgs(args []string) (ParsedHello, bool) {
	switch len(args) {
	case 1:
		return ParsedHello{DeviceID: args[0]}, true
	case 2:
		return ParsedHello{PayloadID: args[0], DeviceID: args[1]}, true
	default:
		return ParsedHello{}, false
	}
}

// ParsedAuth is an AUTH command split into device id and base64 signature.
type ParsedAuth struct {
	DeviceID string
	SigB64   string
}

// ParseAuthArgs interprets the arguments of an AUTH command.
func ParseAuthArgs(args []string) (ParsedAuth, bool) {
	if len(args) != 2 {
		return ParsedAuth{}, false
	}
	return ParsedAuth{DeviceID: args[0], SigB64: args[1]}, true
}
