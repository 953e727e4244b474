package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

var markdown = goldmark.New()

// ExportTranscript renders a chat as Markdown, or as HTML when format is "html".
func (s *Service) ExportTranscript(ctx context.Context, userID, chatID, format string) ([]byte, string, error) {
	c, err := s.ValidateChatOwner(ctx, userID, chatID)
	if err != nil {
		return nil, "", err
	}
	msgs, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, "", err
	}

	md := RenderMarkdown(c, msgs)
	switch strings.ToLower(format) {
	case "", FormatMarkdown:
		return md, "text/markdown; charset=utf-8", nil
	case FormatHTML:
		var buf bytes.Buffer
		if err := markdown.Convert(md, &buf); err != nil {
			return nil, "", fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), "text/html; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func RenderMarkdown(c *Chat, msgs []Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", c.Title)
	for _, m := range msgs {
		speaker := "You"
		if m.Role != RoleUser {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "### %s · %s\n\n%s\n\n", speaker, m.CreatedAt.UTC().Format("2006-01-02 15:04"), strings.TrimSpace(m.Content))
	}
	return b.Bytes()
}
