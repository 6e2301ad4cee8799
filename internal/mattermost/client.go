// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	http       *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		http:       &http.Client{Timeout: sendTimeout},
		log:        log,
	}
}

// Enabled reports whether messages are actually delivered.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback  string  `json:"fallback,omitempty"`
	Color     string  `json:"color,omitempty"`
	Pretext   string  `json:"pretext,omitempty"`
	Title     string  `json:"title,omitempty"`
	TitleLink string  `json:"title_link,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Footer    string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// JuryReminder describes one contest waiting on its jury.
type JuryReminder struct {
	ContestName string
	ContestURL  string
	Pending     int64
	Jury        []string
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendJuryReminder posts one message listing every contest with pending
// submissions and mentioning its jury.
func (c *Client) SendJuryReminder(ctx context.Context, reminders []JuryReminder) error {
	if len(reminders) == 0 {
		c.log.Debug().Msg("No pending submissions, skipping jury reminder")
		return nil
	}

	var total int64
	attachments := make([]Attachment, 0, len(reminders))
	for _, r := range reminders {
		total += r.Pending
		attachments = append(attachments, Attachment{
			Fallback:  fmt.Sprintf("%s: %d pending", r.ContestName, r.Pending),
			Color:     reminderColor(r.Pending),
			Title:     r.ContestName,
			TitleLink: r.ContestURL,
			Fields: []Field{
				{Short: true, Title: "Pending", Value: fmt.Sprintf("%d", r.Pending)},
				{Short: true, Title: "Jury", Value: mentions(r.Jury)},
			},
		})
	}

	text := fmt.Sprintf("### Jury reminder\n\n**%d** submissions across **%d** contests are waiting for review.", total, len(reminders))

	return c.SendMessage(ctx, &Message{
		Username:    "WikiContest",
		Text:        text,
		Attachments: attachments,
	})
}

func mentions(jury []string) string {
	if len(jury) == 0 {
		return "_none_"
	}
	out := make([]string, 0, len(jury))
	for _, j := range jury {
		out = append(out, "@"+strings.ReplaceAll(j, " ", "_"))
	}
	return strings.Join(out, " ")
}

func reminderColor(pending int64) string {
	if pending >= 10 {
		return "#d24b4e"
	}
	return "#2389d7"
}
