package discord

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"finquery/backend/internal/constants"
)

const (
	codeFence = "```"
	// room for the "*(Part X/Y)*" suffix
	partIndicatorReserve = 20
	// room for a reopened fence header such as "```sql"
	fenceHeaderReserve = 32
)

// sendLongMessage sends content, split into numbered parts when it exceeds
// Discord's message limit
func (h *Handler) sendLongMessage(sender MessageSender, channelID, content string) error {
	if strings.TrimSpace(content) == "" {
		content = "I don't have an answer for that."
	}

	limit := constants.DiscordMaxMessageLength
	if len(content) <= limit {
		_, err := sender.ChannelMessageSend(channelID, content)
		return err
	}

	chunks := splitMessage(content, limit-partIndicatorReserve)
	for i, chunk := range chunks {
		msg := chunk
		if len(chunks) > 1 {
			msg = fmt.Sprintf("%s\n*(Part %d/%d)*", chunk, i+1, len(chunks))
		}
		msg = truncateBytes(msg, limit)
		if _, err := sender.ChannelMessageSend(channelID, msg); err != nil {
			return fmt.Errorf("failed to send part %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 && h.chunkDelay > 0 {
			time.Sleep(h.chunkDelay)
		}
	}
	return nil
}

// splitMessage breaks content into chunks of at most maxLength bytes,
// preferring line boundaries. A code block cut across chunks is closed at
// the end of one chunk and reopened with the same header in the next.
func splitMessage(content string, maxLength int) []string {
	if len(content) <= maxLength {
		return []string{content}
	}
	if maxLength < 2*fenceHeaderReserve {
		maxLength = 2 * fenceHeaderReserve
	}

	var (
		chunks  []string
		current strings.Builder
		fence   string // header of the open code block, if any
	)

	emit := func(reopen bool) {
		text := current.String()
		if fence != "" {
			text += "\n" + codeFence
		}
		chunks = append(chunks, text)
		current.Reset()
		if reopen && fence != "" {
			current.WriteString(fence)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		isFence := strings.HasPrefix(trimmed, codeFence)

		for _, piece := range wrapLine(line, maxLength-fenceHeaderReserve) {
			extra := len(piece)
			if current.Len() > 0 {
				extra++
			}
			if current.Len() > 0 && current.Len()+extra+len(codeFence)+1 > maxLength {
				emit(true)
			}
			if current.Len() > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(piece)
		}

		if isFence {
			if fence == "" {
				fence = trimmed
			} else {
				fence = ""
			}
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		emit(false)
	}
	return chunks
}

// truncateBytes cuts s to at most n bytes without splitting a rune
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// wrapLine cuts a line longer than width at the last space before width,
// or hard at width when there is none
func wrapLine(line string, width int) []string {
	var pieces []string
	for len(line) > width {
		cut := strings.LastIndexByte(line[:width], ' ')
		if cut <= 0 {
			cut = width
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = width
			}
		}
		pieces = append(pieces, line[:cut])
		line = strings.TrimLeft(line[cut:], " ")
	}
	return append(pieces, line)
}
