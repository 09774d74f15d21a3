package discord

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// Discord rejects messages longer than this.
const messageLimit = 2000

var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// displayName resolves the name used when formatting a user's turn:
// guild nickname, then global display name, then username.
func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

// rewriteMentions strips the bot's own mention and annotates everyone else's
// as `<@id>(name)` so the model can tell who is being addressed.
func rewriteMentions(content, botID string, mentions []*discordgo.User) string {
	names := make(map[string]string, len(mentions))
	for _, user := range mentions {
		if user == nil || user.ID == botID {
			continue
		}
		names[user.ID] = displayName(nil, user)
	}

	out := mentionPattern.ReplaceAllStringFunc(content, func(token string) string {
		id := mentionPattern.FindStringSubmatch(token)[1]
		if id == botID {
			return ""
		}
		if name, ok := names[id]; ok && name != "" {
			return "<@" + id + ">(" + name + ")"
		}
		return token
	})

	return strings.TrimSpace(out)
}

// firstImageAttachment returns the URL of the first image attachment, if any.
func firstImageAttachment(attachments []*discordgo.MessageAttachment) string {
	for _, att := range attachments {
		if att == nil {
			continue
		}
		if strings.HasPrefix(att.ContentType, "image/") && att.URL != "" {
			return att.URL
		}
	}
	return ""
}

// splitMessage breaks a reply into chunks that fit the message limit,
// preferring newline boundaries. Discord counts the limit in characters, so
// chunks are measured in runes and never cut inside one.
func splitMessage(content string, limit int) []string {
	if limit <= 0 {
		limit = messageLimit
	}
	if utf8.RuneCountInString(content) <= limit {
		return []string{content}
	}

	var chunks []string
	remaining := content
	for utf8.RuneCountInString(remaining) > limit {
		cut := runeOffset(remaining, limit)
		if nl := strings.LastIndex(remaining[:cut], "\n"); nl > 0 {
			cut = nl
		}
		if chunk := strings.TrimRight(remaining[:cut], "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeft(remaining[cut:], "\n")
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// runeOffset returns the byte offset just past the first n runes of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
