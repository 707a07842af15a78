package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/crimsonworks/felix/pkg/config"
)

const (
	sendTimeout = 10 * time.Second

	// Discord caps messages at 2000 characters; leave headroom so
	// splits land on natural boundaries.
	discordChunkLimit = 1500
)

// DiscordChannel bridges Discord messages to the engine. The caller
// key is derived from the Discord user id, so an identity follows the
// user across servers and DMs.
type DiscordChannel struct {
	*BaseChannel
	session   *discordgo.Session
	responder Responder
}

func NewDiscordChannel(cfg config.DiscordConfig, responder Responder) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", cfg.AllowFrom),
		session:     session,
		responder:   responder,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	slog.Info("starting discord channel")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	slog.Info("discord channel connected", "username", botUser.Username, "user_id", botUser.ID)

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	slog.Info("stopping discord channel")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}

	return nil
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if m.Author.ID == s.State.User.ID {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		slog.Debug("discord message rejected by allowlist", "user_id", m.Author.ID)
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	callerKey := "discord:" + m.Author.ID
	reply := c.responder.Handle(ctx, callerKey, content)
	if reply.Text == "" {
		return
	}

	for _, chunk := range splitMessage(reply.Text, discordChunkLimit) {
		if err := c.sendChunk(ctx, m.ChannelID, chunk); err != nil {
			slog.Error("discord send failed", "err", err, "channel_id", m.ChannelID)
			return
		}
	}
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

// splitMessage chops long replies at newline or space boundaries so
// each chunk stays under the Discord message limit.
func splitMessage(content string, limit int) []string {
	var chunks []string

	for len(content) > 0 {
		if len(content) <= limit {
			chunks = append(chunks, content)
			break
		}

		end := findLastBoundary(content[:limit])
		if end <= 0 {
			// Hard split: back up to a rune start so a multi-byte
			// emoji is never cut in half.
			end = limit
			for end > 0 && !utf8.RuneStart(content[end]) {
				end--
			}
			if end == 0 {
				end = limit
			}
		}

		chunks = append(chunks, content[:end])
		content = strings.TrimSpace(content[end:])
	}

	return chunks
}

// findLastBoundary returns the last newline, or failing that the last
// space, near the end of s.
func findLastBoundary(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-200; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	for i := len(s) - 1; i >= 0 && i >= len(s)-100; i-- {
		if s[i] == ' ' || s[i] == '\t' {
			return i
		}
	}
	return -1
}
