package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/hanabot/ai"
	"github.com/tnicklin/hanabot/logger"
	"github.com/tnicklin/hanabot/persona"
	"github.com/tnicklin/hanabot/store"
)

var _ Bot = (*DefaultBot)(nil)

const (
	commandPrefix  = "!"
	respondTimeout = 2 * time.Minute
	imageTimeout   = 30 * time.Second
)

// apiErrorNotice is what users see when the completion API fails.
const apiErrorNotice = "Something went wrong talking to the AI service. Try again in a bit."

var defaultIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsDirectMessages

// DefaultBot is one gateway session. A message mentioning the bot always gets
// a reply; everything else feeds the per-channel random-reply counter.
type DefaultBot struct {
	session       *discordgo.Session
	ownerID       string
	blacklist     ChannelList
	store         store.Store
	ai            ai.Client
	images        *ai.ImageFetcher
	visionEnabled bool
	priming       persona.Transcript
	closing       persona.Transcript
	counter       *replyCounter
	logger        logger.Logger
	shutdown      func()
	removeHandler func()
}

type Params struct {
	Credential    BotCredential
	Config        Config
	Store         store.Store
	AI            ai.Client
	Images        *ai.ImageFetcher
	VisionEnabled bool
	Priming       persona.Transcript
	Closing       persona.Transcript
	Logger        logger.Logger

	// Shutdown requests a process-wide stop; wired to the !down command.
	Shutdown func()
}

func New(p Params) (*DefaultBot, error) {
	cfg := p.Config
	cfg.Defaults()

	session, err := discordgo.New("Bot " + p.Credential.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	intents := discordgo.Intent(p.Credential.Intent)
	if intents == 0 {
		intents = defaultIntents
	}
	session.Identify.Intents = intents

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &DefaultBot{
		session:       session,
		ownerID:       cfg.OwnerID,
		blacklist:     cfg.Blacklist,
		store:         p.Store,
		ai:            p.AI,
		images:        p.Images,
		visionEnabled: p.VisionEnabled,
		priming:       p.Priming,
		closing:       p.Closing,
		counter:       newReplyCounter(cfg.ReplyAfterMin, cfg.ReplyAfterMax),
		logger:        log,
		shutdown:      p.Shutdown,
	}, nil
}

func (b *DefaultBot) Start(ctx context.Context) error {
	b.removeHandler = b.session.AddHandler(b.handleMessage)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}

	b.logger.InfoW("gateway session open",
		"user", b.session.State.User.Username,
		"intents", int(b.session.Identify.Intents),
	)
	return nil
}

func (b *DefaultBot) Stop() error {
	if b.removeHandler != nil {
		b.removeHandler()
		b.removeHandler = nil
	}
	return b.session.Close()
}

func (b *DefaultBot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if b.blacklist.Contains(m.ChannelID) {
		return
	}

	if strings.HasPrefix(m.Content, commandPrefix) {
		b.handleCommand(s, m)
		return
	}

	text := rewriteMentions(m.Content, s.State.User.ID, m.Mentions)
	imageURL := firstImageAttachment(m.Attachments)
	if text == "" && imageURL == "" {
		return
	}

	// Mentions and DMs always get a reply; other traffic feeds the
	// random-reply counter.
	if b.isAddressed(s, m) {
		b.respond(s, m, text, imageURL, true)
		return
	}

	if !b.counter.Bump(m.ChannelID) {
		b.recordUserTurn(m, text, imageURL)
		return
	}

	b.logger.InfoW("random reply triggered",
		"channel_id", m.ChannelID,
		"user", m.Author.Username,
	)
	// The model only gets moderation powers when spoken to directly.
	b.respond(s, m, text, imageURL, false)
}

func (b *DefaultBot) isAddressed(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return true
	}
	for _, user := range m.Mentions {
		if user != nil && user.ID == s.State.User.ID {
			return true
		}
	}
	return false
}

// respond runs one completion round trip: compose the conversation, call the
// API, apply reply directives, send the reply, and record both turns.
func (b *DefaultBot) respond(s *discordgo.Session, m *discordgo.MessageCreate, text, imageURL string, allowTimeout bool) {
	ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
	defer cancel()

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		b.logger.WarnW("typing indicator failed", "channel_id", m.ChannelID, "error", err)
	}

	name := displayName(m.Member, m.Author)
	prompt, historyEntry, dataURI := b.composePrompt(ctx, name, text, imageURL)

	history, err := b.store.History(ctx, m.ChannelID)
	if err != nil {
		b.logger.ErrorW("load history", "channel_id", m.ChannelID, "error", err)
	}

	var memories []string
	stored, err := b.store.ListMemories(ctx, m.ChannelID)
	if err != nil {
		b.logger.ErrorW("load memories", "channel_id", m.ChannelID, "error", err)
	}
	for _, memory := range stored {
		memories = append(memories, memory.Content)
	}

	reply, err := b.ai.Reply(ctx, ai.Conversation{
		Priming:  b.priming,
		Memories: memories,
		History:  history,
		Closing:  b.closing,
		Prompt:   prompt,
		ImageURL: dataURI,
	})
	if err != nil {
		b.logger.ErrorW("completion failed", "channel_id", m.ChannelID, "error", err)
		b.sendReply(s, m, apiErrorNotice)
		return
	}

	cleaned := b.applyDirectives(ctx, s, m, reply, allowTimeout)

	if cleaned != "" {
		b.sendReply(s, m, cleaned)
	}

	assistantTurn := cleaned
	if assistantTurn == "" {
		assistantTurn = reply
	}
	if err := b.store.AppendHistory(ctx, m.ChannelID,
		persona.Message{Role: persona.RoleUser, Content: historyEntry},
		persona.Message{Role: persona.RoleAssistant, Content: assistantTurn},
	); err != nil {
		b.logger.ErrorW("append history", "channel_id", m.ChannelID, "error", err)
	}
}

// composePrompt formats the user's turn. The history entry keeps an [image]
// tag instead of the image itself; the data URI is only produced when vision
// is enabled and the download succeeds.
func (b *DefaultBot) composePrompt(ctx context.Context, name, text, imageURL string) (prompt, historyEntry, dataURI string) {
	if imageURL == "" {
		prompt = name + ": " + text
		return prompt, prompt, ""
	}

	if b.visionEnabled && b.images != nil {
		imgCtx, cancel := context.WithTimeout(ctx, imageTimeout)
		defer cancel()

		uri, err := b.images.DataURI(imgCtx, imageURL)
		if err != nil {
			b.logger.WarnW("image fetch failed, sending text only", "url", imageURL, "error", err)
		} else {
			dataURI = uri
		}
	}

	if dataURI != "" {
		if text == "" {
			prompt = name + " sent an image:"
		} else {
			prompt = name + ": " + text
		}
	} else {
		if text == "" {
			prompt = name + ": [image]"
		} else {
			prompt = name + ": " + text + " [image]"
		}
	}

	if text == "" {
		historyEntry = name + ": [image]"
	} else {
		historyEntry = name + ": " + text + " [image]"
	}
	return prompt, historyEntry, dataURI
}

// recordUserTurn stores a message that did not trigger a reply, so the next
// completion sees the channel chatter in between.
func (b *DefaultBot) recordUserTurn(m *discordgo.MessageCreate, text, imageURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := displayName(m.Member, m.Author)
	entry := name + ": " + text
	if imageURL != "" {
		if text == "" {
			entry = name + ": [image]"
		} else {
			entry += " [image]"
		}
	}

	if err := b.store.AppendHistory(ctx, m.ChannelID, persona.Message{
		Role:    persona.RoleUser,
		Content: entry,
	}); err != nil {
		b.logger.ErrorW("record user turn", "channel_id", m.ChannelID, "error", err)
	}
}

// applyDirectives executes memory directives, optionally executes the first
// timeout directive, and returns the reply with all directives removed.
func (b *DefaultBot) applyDirectives(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, reply string, allowTimeout bool) string {
	contents, cleaned := extractMemories(reply)
	for _, content := range contents {
		if err := b.store.AddMemory(ctx, store.Memory{
			ChannelID: m.ChannelID,
			GuildID:   m.GuildID,
			UserID:    m.Author.ID,
			Content:   content,
		}); err != nil {
			b.logger.ErrorW("store memory", "channel_id", m.ChannelID, "error", err)
		}
	}

	if directive, ok := parseTimeout(cleaned); ok && allowTimeout {
		b.executeTimeout(s, m, directive)
	}
	return stripTimeouts(cleaned)
}

func (b *DefaultBot) executeTimeout(s *discordgo.Session, m *discordgo.MessageCreate, directive timeoutDirective) {
	if m.GuildID == "" {
		b.logger.WarnW("timeout directive outside a guild", "channel_id", m.ChannelID)
		return
	}

	until := time.Now().UTC().Add(time.Duration(directive.Minutes) * time.Minute)
	err := s.GuildMemberTimeout(m.GuildID, m.Author.ID, &until,
		discordgo.WithAuditLogReason(directive.Reason))
	if err != nil {
		b.logger.ErrorW("timeout failed",
			"guild_id", m.GuildID,
			"user_id", m.Author.ID,
			"minutes", directive.Minutes,
			"error", err,
		)
		return
	}

	b.logger.InfoW("member timed out",
		"guild_id", m.GuildID,
		"user_id", m.Author.ID,
		"minutes", directive.Minutes,
		"reason", directive.Reason,
	)
}

func (b *DefaultBot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	if b.ownerID == "" || m.Author.ID != b.ownerID {
		return
	}

	cmd := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(m.Content, commandPrefix)))

	switch cmd {
	case "wack":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		removed, err := b.store.ClearHistory(ctx, m.ChannelID)
		if err != nil {
			b.logger.ErrorW("clear history", "channel_id", m.ChannelID, "error", err)
			return
		}
		if removed > 0 {
			b.sendReply(s, m, "Ow. My head's all empty now.")
		} else {
			b.sendReply(s, m, "There's nothing left to forget.")
		}

	case "down":
		b.logger.WarnW("shutdown requested", "user_id", m.Author.ID)
		b.sendReply(s, m, "Going for a nap, back soon.")
		if b.shutdown != nil {
			b.shutdown()
		}
	}
}

// sendReply replies to the triggering message, falling back to a plain
// channel send.
func (b *DefaultBot) sendReply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	for _, chunk := range splitMessage(content, messageLimit) {
		if _, err := s.ChannelMessageSendReply(m.ChannelID, chunk, m.Reference()); err != nil {
			b.logger.WarnW("reply failed, sending directly", "channel_id", m.ChannelID, "error", err)
			if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
				b.logger.ErrorW("send failed", "channel_id", m.ChannelID, "error", err)
				return
			}
		}
	}
}
