package share

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
)

const (
	challengeColor = 0x0C8C5F
	dictionaryURL  = "https://dictionary.cambridge.org/dictionary/english/"
	spacer         = "\u200b"
	maxErrorBody   = 512
)

// DiscordMessage is a Discord webhook payload.
type DiscordMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

// Field is one embed field.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is an embed footer.
type Footer struct {
	Text string `json:"text"`
}

// DailyChallengeMessage formats one schedule day as a Discord quiz post.
func DailyChallengeMessage(day challenge.DayChallenge) DiscordMessage {
	fields := []Field{spacerField()}

	if len(day.ReviewVocabulary) > 0 {
		links := make([]string, len(day.ReviewVocabulary))
		for i, w := range day.ReviewVocabulary {
			links[i] = fmt.Sprintf("[%s](%s)", w, DictionaryURL(w))
		}
		fields = append(fields,
			Field{Name: "🔄 Words to Review", Value: strings.Join(links, ", ")},
			spacerField(),
		)
	}

	if len(day.NewVocabulary) > 0 {
		lines := make([]string, len(day.NewVocabulary))
		for i, v := range day.NewVocabulary {
			lines[i] = fmt.Sprintf("[**%s**](%s) (%s) - %s", v.Word, DictionaryURL(v.Word), v.PartOfSpeech, v.Translation)
		}
		fields = append(fields,
			Field{Name: "✨ Today's New Vocabulary", Value: strings.Join(lines, "\n")},
			spacerField(),
		)
	}

	fields = append(fields,
		Field{Name: "📝 Sentence to Translate", Value: "```\n" + day.SourceText + "\n```"},
		spacerField(),
		Field{Name: "💡 Sample Translation (Click to reveal)", Value: "||```\n" + day.TargetText + "\n```||"},
	)

	return DiscordMessage{
		Content: "# 🎯 **DAILY CHALLENGE**",
		Embeds: []Embed{{
			Title:       fmt.Sprintf("📅 Day %d Challenge", day.Day),
			Description: fmt.Sprintf("Translate the following sentence into English using the **%s** tense!", day.Tense),
			Color:       challengeColor,
			Fields:      fields,
			Footer:      &Footer{Text: "\n\nNote: Make sure to translate the sentence into English before revealing the sample translation."},
		}},
	}
}

func spacerField() Field {
	return Field{Name: spacer, Value: spacer}
}

// DictionaryURL links word to its Cambridge dictionary entry.
func DictionaryURL(word string) string {
	return dictionaryURL + url.PathEscape(strings.ToLower(word))
}

// Text flattens the message for channels without embeds.
func (m DiscordMessage) Text() string {
	var b strings.Builder
	if m.Content != "" {
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	for _, e := range m.Embeds {
		if e.Title != "" {
			b.WriteString(e.Title + "\n")
		}
		if e.Description != "" {
			b.WriteString(e.Description + "\n")
		}
		for _, f := range e.Fields {
			if f.Value == spacer {
				continue
			}
			b.WriteString("\n" + f.Name + "\n" + f.Value + "\n")
		}
		if e.Footer != nil {
			b.WriteString("\n" + strings.TrimSpace(e.Footer.Text) + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// MarshalPayload encodes a payload without HTML escaping.
func MarshalPayload(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CurlCommand returns a shell command that posts payload to webhookURL.
func CurlCommand(webhookURL string, payload any) (string, error) {
	body, err := MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	if webhookURL == "" {
		webhookURL = "YOUR_WEBHOOK_URL"
	}
	escaped := strings.ReplaceAll(string(body), "'", `'\''`)
	return fmt.Sprintf("curl -X POST %q \\\n  -H \"Content-Type: application/json\" \\\n  -d '%s'", webhookURL, escaped), nil
}

// DiscordChannel posts to Discord webhooks.
type DiscordChannel struct {
	defaultURL string
	client     *http.Client
}

// NewDiscordChannel creates a Discord channel. defaultURL is used when a
// message has no target; a nil client gets a 15s timeout client.
func NewDiscordChannel(defaultURL string, client *http.Client) *DiscordChannel {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DiscordChannel{defaultURL: defaultURL, client: client}
}

func (d *DiscordChannel) SendMessage(ctx context.Context, msg OutboundMessage) error {
	target := msg.Target
	if target == "" {
		target = d.defaultURL
	}
	if err := ValidateWebhookURL(target); err != nil {
		return err
	}

	payload := DiscordMessage{Content: msg.Text}
	if msg.Payload != nil {
		payload = *msg.Payload
	}
	body, err := MarshalPayload(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting Discord webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &WebhookError{Channel: Discord, Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
