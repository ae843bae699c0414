// Package share delivers challenges and notifications to chat channels (Discord, Telegram).
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
)

// Channel names.
const (
	Discord  = "discord"
	Telegram = "telegram"
)

// ErrNoTarget is returned when neither the message nor the channel names a destination.
var ErrNoTarget = errors.New("no destination configured")

// OutboundMessage is a message to send via any channel.
type OutboundMessage struct {
	Channel string
	Target  string // webhook URL for discord, chat id for telegram; empty uses the channel default
	Text    string
	Payload *DiscordMessage // rich form; channels without embeds fall back to Payload.Text()
}

// Body returns the plain text form of the message.
func (m OutboundMessage) Body() string {
	if m.Text == "" && m.Payload != nil {
		return m.Payload.Text()
	}
	return m.Text
}

// Channel is the interface each messaging platform must implement.
type Channel interface {
	SendMessage(ctx context.Context, msg OutboundMessage) error
}

// WebhookError reports a non-2xx answer from a channel's API.
type WebhookError struct {
	Channel string
	Status  int
	Body    string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("%s webhook error %d: %s", e.Channel, e.Status, e.Body)
}

// Gateway routes messages to registered channels.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("share channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Channels returns the registered channel names, sorted.
func (g *Gateway) Channels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.channels))
	for name := range g.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Send dispatches a message to the appropriate channel.
func (g *Gateway) Send(ctx context.Context, msg OutboundMessage) error {
	g.mu.RLock()
	ch, ok := g.channels[msg.Channel]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown channel: %s", msg.Channel)
	}

	if err := ch.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("sending via %s: %w", msg.Channel, err)
	}
	slog.Info("message shared", "channel", msg.Channel)
	return nil
}

// ValidateWebhookURL accepts absolute http(s) URLs only.
func ValidateWebhookURL(raw string) error {
	if raw == "" {
		return ErrNoTarget
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid webhook URL %q: must be an absolute http(s) URL", raw)
	}
	return nil
}

// DefaultWebhookHosts are the Discord hosts a caller-supplied webhook URL may name.
var DefaultWebhookHosts = []string{"discord.com", "discordapp.com"}

const webhookPathPrefix = "/api/webhooks/"

// WebhookAllowlist restricts caller-supplied webhook URLs to https Discord
// webhook endpoints on known hosts. The operator's default webhook is not
// checked against it.
type WebhookAllowlist struct {
	hosts []string
}

// NewWebhookAllowlist allows DefaultWebhookHosts plus extra. An extra entry
// with a port ("hooks.internal:8443") matches that port only.
func NewWebhookAllowlist(extra ...string) *WebhookAllowlist {
	a := &WebhookAllowlist{}
	for _, h := range append(slices.Clone(DefaultWebhookHosts), extra...) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !slices.Contains(a.hosts, h) {
			a.hosts = append(a.hosts, h)
		}
	}
	return a
}

// Hosts returns the allowed hosts.
func (a *WebhookAllowlist) Hosts() []string {
	return slices.Clone(a.hosts)
}

// Check returns an error unless raw is an https URL on an allowed host with
// a path under /api/webhooks/.
func (a *WebhookAllowlist) Check(raw string) error {
	if err := ValidateWebhookURL(raw); err != nil {
		return err
	}
	u, _ := url.Parse(raw)
	if u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use https")
	}
	if u.User != nil {
		return fmt.Errorf("webhook URL must not carry credentials")
	}
	if !a.allows(u) {
		return fmt.Errorf("webhook host %q is not allowed", u.Host)
	}
	if !strings.HasPrefix(path.Clean(u.Path), webhookPathPrefix) {
		return fmt.Errorf("webhook URL path must start with %s", webhookPathPrefix)
	}
	return nil
}

func (a *WebhookAllowlist) allows(u *url.URL) bool {
	host := strings.ToLower(u.Host)
	name := strings.ToLower(u.Hostname())
	port := u.Port()
	for _, h := range a.hosts {
		if h == host || (h == name && (port == "" || port == "443")) {
			return true
		}
	}
	return false
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu           sync.Mutex
	SentMessages []OutboundMessage
	Err          error
}

func (m *MockChannel) SendMessage(_ context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockChannel) Sent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboundMessage{}, m.SentMessages...)
}
