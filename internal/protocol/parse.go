package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is matched by every parse failure.
var ErrMalformed = errors.New("malformed command")

// ParseError reports why a token list did not form a complete command.
type ParseError struct {
	Tokens []string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed command %q: %s", strings.Join(e.Tokens, Separator), e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

func malformed(tokens []string, format string, args ...any) error {
	return &ParseError{Tokens: tokens, Reason: fmt.Sprintf(format, args...)}
}

// Framing selects where the verb sits in a command message.
type Framing int

const (
	// FramingCanonical is "<entity> <verb> args...".
	FramingCanonical Framing = iota
	// FramingLegacy is "<entity> <route> <verb> args..."; the route token is
	// carried by older hosts and ignored here.
	FramingLegacy
)

func (f Framing) String() string {
	switch f {
	case FramingCanonical:
		return "canonical"
	case FramingLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("framing(%d)", int(f))
	}
}

// ParseFraming maps a configuration value onto a Framing.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "canonical":
		return FramingCanonical, nil
	case "legacy":
		return FramingLegacy, nil
	default:
		return 0, fmt.Errorf("unknown framing %q", s)
	}
}

// Parser turns decoded tokens into commands.
type Parser struct {
	Framing Framing
	// MaxCount caps flood repetitions; zero means no cap.
	MaxCount int
}

// NewParser creates a parser for the given framing and flood cap.
func NewParser(framing Framing, maxCount int) *Parser {
	return &Parser{Framing: framing, MaxCount: maxCount}
}

var defaultParser = Parser{Framing: FramingCanonical}

// Parse parses tokens with canonical framing and no flood cap.
func Parse(tokens []string) (Command, error) {
	return defaultParser.Parse(tokens)
}

// Parse returns a complete Command or a *ParseError; it never returns a
// partially filled command.
func (p *Parser) Parse(tokens []string) (Command, error) {
	if len(tokens) < ReservedFields {
		return nil, malformed(tokens, "expected entity id and verb")
	}

	// The entity is only meaningful to channel verbs, but it must always be
	// numeric; shutdown is conventionally addressed to entity 0.
	entity, err := strconv.ParseUint(tokens[0], 10, 64)
	if err != nil {
		return nil, malformed(tokens, "entity id %q is not numeric", tokens[0])
	}

	verb := tokens[1]
	args := argList(tokens[2:])
	if p.Framing == FramingLegacy {
		v, ok := args.next()
		if !ok {
			return nil, malformed(tokens, "missing verb")
		}
		verb = v
	}

	switch Verb(verb) {
	case VerbShutdown:
		if !args.empty() {
			return nil, malformed(tokens, "shutdown takes no arguments")
		}
		return Terminate{}, nil

	case VerbRepeat:
		if entity == 0 {
			return nil, malformed(tokens, "repeat requires a non-zero channel id")
		}
		text, ok := args.text()
		if !ok {
			return nil, malformed(tokens, "repeat requires text")
		}
		return RelayMessage{TargetChannel: ChannelID(entity), Text: text}, nil

	case VerbSpamChannel:
		if entity == 0 {
			return nil, malformed(tokens, "spamchannel requires a non-zero channel id")
		}
		count, err := p.count(&args)
		if err != nil {
			return nil, malformed(tokens, "%v", err)
		}
		text, ok := args.text()
		if !ok {
			return nil, malformed(tokens, "spamchannel requires text")
		}
		return FloodChannel{TargetChannel: ChannelID(entity), Count: count, Text: text}, nil

	case VerbSpamUser:
		raw, ok := args.next()
		if !ok {
			return nil, malformed(tokens, "spamuser requires a user id")
		}
		user, err := parseID(raw)
		if err != nil {
			return nil, malformed(tokens, "user id: %v", err)
		}
		count, err := p.count(&args)
		if err != nil {
			return nil, malformed(tokens, "%v", err)
		}
		text, ok := args.text()
		if !ok {
			return nil, malformed(tokens, "spamuser requires text")
		}
		return FloodUser{TargetUser: UserID(user), Count: count, Text: text}, nil

	default:
		return nil, malformed(tokens, "unknown verb %q", verb)
	}
}

func (p *Parser) count(args *argList) (int, error) {
	raw, ok := args.next()
	if !ok {
		return 0, errors.New("missing count")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("count %q is not a number", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("count %d must be positive", n)
	}
	if p.MaxCount > 0 && n > p.MaxCount {
		return 0, fmt.Errorf("count %d exceeds limit %d", n, p.MaxCount)
	}
	return n, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a numeric id", s)
	}
	if id == 0 {
		return 0, fmt.Errorf("id must be non-zero")
	}
	return id, nil
}

// argList consumes positional arguments. Empty tokens left by repeated
// spaces are skipped before each positional argument.
type argList []string

func (a *argList) skipEmpty() {
	for len(*a) > 0 && (*a)[0] == "" {
		*a = (*a)[1:]
	}
}

func (a *argList) empty() bool {
	a.skipEmpty()
	return len(*a) == 0
}

func (a *argList) next() (string, bool) {
	a.skipEmpty()
	if len(*a) == 0 {
		return "", false
	}
	tok := (*a)[0]
	*a = (*a)[1:]
	return tok, true
}

// text joins every remaining token with single spaces.
func (a *argList) text() (string, bool) {
	a.skipEmpty()
	if len(*a) == 0 {
		return "", false
	}
	s := strings.Join(*a, Separator)
	*a = nil
	return s, true
}
