// Package discord connects the agent to Discord and exposes the chat
// operations the control channel dispatcher needs.
package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/agent-command/subbot/internal/dispatch"
	"github.com/agent-command/subbot/internal/protocol"
	"github.com/agent-command/subbot/internal/session"
	"github.com/bwmarrin/discordgo"
)

// restAPI is the subset of *discordgo.Session used for dispatch.
type restAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Presence is the streaming activity set once the gateway is ready.
type Presence struct {
	Name string
	URL  string
}

// Bot is a logged-in Discord client. It implements dispatch.Capabilities.
type Bot struct {
	session  *discordgo.Session
	rest     restAPI
	logger   *slog.Logger
	presence Presence

	ready     chan *discordgo.Ready
	done      chan struct{}
	closeOnce sync.Once
}

var _ dispatch.Capabilities = (*Bot)(nil)

// New creates a bot for token without connecting.
func New(token string, presence Presence, logger *slog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsAllWithoutPrivileged

	b := newBot(s, logger)
	b.session = s
	b.presence = presence
	s.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.ready <- r
	})
	return b, nil
}

func newBot(rest restAPI, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bot{
		rest:   rest,
		logger: logger,
		ready:  make(chan *discordgo.Ready, 1),
		done:   make(chan struct{}),
	}
}

// Open connects to the gateway and waits for the ready event, returning the
// bot's own user id.
func (b *Bot) Open(ctx context.Context) (session.Identity, error) {
	if err := b.session.Open(); err != nil {
		return 0, fmt.Errorf("failed to open discord gateway: %w", err)
	}

	var r *discordgo.Ready
	select {
	case <-ctx.Done():
		_ = b.Close()
		return 0, ctx.Err()
	case r = <-b.ready:
	}

	id, err := session.ParseIdentity(r.User.ID)
	if err != nil {
		_ = b.Close()
		return 0, err
	}
	b.logger.Info("discord ready", "user", r.User.Username, "id", r.User.ID, "guilds", len(r.Guilds))

	if b.presence.Name != "" {
		if err := b.session.UpdateStreamingStatus(0, b.presence.Name, b.presence.URL); err != nil {
			b.logger.Warn("failed to set presence", "error", err)
		}
	}
	return id, nil
}

// Done is closed once the bot has been shut down.
func (b *Bot) Done() <-chan struct{} { return b.done }

func (b *Bot) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		if b.session != nil {
			err = b.session.Close()
		}
	})
	return err
}

func (b *Bot) FetchChannel(ctx context.Context, id protocol.ChannelID) (dispatch.Target, error) {
	ch, err := b.rest.Channel(id.String(), discordgo.WithContext(ctx))
	if err != nil {
		return dispatch.Target{}, err
	}
	return dispatch.Target{ID: ch.ID, Name: ch.Name}, nil
}

// FetchUser resolves the user and opens (or reuses) the direct message channel.
func (b *Bot) FetchUser(ctx context.Context, id protocol.UserID) (dispatch.Target, error) {
	u, err := b.rest.User(id.String(), discordgo.WithContext(ctx))
	if err != nil {
		return dispatch.Target{}, err
	}
	dm, err := b.rest.UserChannelCreate(u.ID, discordgo.WithContext(ctx))
	if err != nil {
		return dispatch.Target{}, fmt.Errorf("open direct message with %s: %w", u.ID, err)
	}
	return dispatch.Target{ID: dm.ID, Name: u.Username}, nil
}

func (b *Bot) Send(ctx context.Context, target dispatch.Target, text string) error {
	_, err := b.rest.ChannelMessageSend(target.ID, text, discordgo.WithContext(ctx))
	return err
}

// TerminateSelf logs out of Discord. The control connection is left to the
// session loop.
func (b *Bot) TerminateSelf(context.Context) error {
	b.logger.Info("closing discord session")
	return b.Close()
}
