package protocol

import (
	"fmt"
	"strconv"
)

// ChannelID is a chat platform channel snowflake.
type ChannelID uint64

func (id ChannelID) String() string { return strconv.FormatUint(uint64(id), 10) }

// UserID is a chat platform user snowflake.
type UserID uint64

func (id UserID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Verb names a control command on the wire.
type Verb string

const (
	VerbShutdown    Verb = "shutdown"
	VerbRepeat      Verb = "repeat"
	VerbSpamChannel Verb = "spamchannel"
	VerbSpamUser    Verb = "spamuser"
)

// Command is one parsed control instruction. The set is closed: Terminate,
// RelayMessage, FloodChannel and FloodUser.
type Command interface {
	Verb() Verb
	fmt.Stringer
	command()
}

// Terminate asks the agent to shut its chat session down.
type Terminate struct{}

// RelayMessage sends Text once to TargetChannel.
type RelayMessage struct {
	TargetChannel ChannelID
	Text          string
}

// FloodChannel sends Text to TargetChannel Count times.
type FloodChannel struct {
	TargetChannel ChannelID
	Count         int
	Text          string
}

// FloodUser sends Text to the direct conversation with TargetUser Count times.
type FloodUser struct {
	TargetUser UserID
	Count      int
	Text       string
}

func (Terminate) Verb() Verb    { return VerbShutdown }
func (RelayMessage) Verb() Verb { return VerbRepeat }
func (FloodChannel) Verb() Verb { return VerbSpamChannel }
func (FloodUser) Verb() Verb    { return VerbSpamUser }

func (Terminate) String() string { return "shutdown" }

func (c RelayMessage) String() string {
	return fmt.Sprintf("repeat channel=%s len=%d", c.TargetChannel, len(c.Text))
}

func (c FloodChannel) String() string {
	return fmt.Sprintf("spamchannel channel=%s count=%d len=%d", c.TargetChannel, c.Count, len(c.Text))
}

func (c FloodUser) String() string {
	return fmt.Sprintf("spamuser user=%s count=%d len=%d", c.TargetUser, c.Count, len(c.Text))
}

func (Terminate) command()    {}
func (RelayMessage) command() {}
func (FloodChannel) command() {}
func (FloodUser) command()    {}
