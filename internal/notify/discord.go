// Package notify posts session-complete summaries to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/pkg/store"
)

// Embed colours (Discord integer format).
const (
	embedColorGreen  = 0x2ECC71
	embedColorYellow = 0xF1C40F
	embedColorRed    = 0xE74C3C
)

// ErrInvalidWebhook is returned by NewDiscord for URLs that are not Discord
// webhook URLs.
var ErrInvalidWebhook = errors.New("notify: invalid discord webhook url")

// webhookExecutor is the subset of *discordgo.Session used to post messages.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord sends a summary embed to a Discord webhook for every completed
// coaching session.
type Discord struct {
	session webhookExecutor
	id      string
	token   string
	now     func() time.Time
}

var _ coach.Notifier = (*Discord)(nil)

// DiscordOption configures a Discord notifier.
type DiscordOption func(*Discord)

// WithSession replaces the discordgo session used to reach the API.
func WithSession(s *discordgo.Session) DiscordOption {
	return func(d *Discord) { d.session = s }
}

// NewDiscord parses webhookURL, which must have the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscord(webhookURL string, opts ...DiscordOption) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhooks need no bot token.
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: create discord session: %w", err)
	}
	d := &Discord{session: s, id: id, token: token, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: scheme %q", ErrInvalidWebhook, u.Scheme)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Optional API version segment: /api/v10/webhooks/{id}/{token}.
	if len(parts) == 5 && strings.HasPrefix(parts[1], "v") {
		parts = append(parts[:1], parts[2:]...)
	}
	if len(parts) != 4 || parts[0] != "api" || parts[1] != "webhooks" || parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: path %q", ErrInvalidWebhook, u.Path)
	}
	return parts[2], parts[3], nil
}

// SessionCompleted posts the summary embed.
func (d *Discord) SessionCompleted(ctx context.Context, sess store.Session, summary coach.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &discordgo.WebhookParams{
		Username: "Echo Coach",
		Embeds:   []*discordgo.MessageEmbed{buildSummaryEmbed(sess, summary, d.now())},
	}
	if _, err := d.session.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: post discord webhook: %w", err)
	}
	return nil
}

// buildSummaryEmbed renders a finished session as an embed. The colour
// follows the total score.
func buildSummaryEmbed(sess store.Session, summary coach.Summary, now time.Time) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Session ID", Value: fmt.Sprintf("`%s`", sess.ID), Inline: true},
		{Name: "Questions", Value: fmt.Sprintf("%d", summary.QuestionsAnswered), Inline: true},
		{Name: "Total Score", Value: formatScore(summary.TotalScore), Inline: true},
		{Name: "Clarity", Value: formatScore(summary.AvgClarity), Inline: true},
		{Name: "Confidence", Value: formatScore(summary.AvgConfidence), Inline: true},
		{Name: "Accuracy", Value: formatScore(summary.AvgAccuracy), Inline: true},
	}
	if !sess.StartedAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  now.Sub(sess.StartedAt).Truncate(time.Second).String(),
			Inline: true,
		})
	}

	desc := "Practice session complete."
	if sess.SessionType != "" {
		desc = fmt.Sprintf("%s session complete.", titleCase(sess.SessionType))
	}
	if sess.Difficulty != "" {
		desc += fmt.Sprintf(" Difficulty: %s.", sess.Difficulty)
	}

	return &discordgo.MessageEmbed{
		Title:       "Interview Practice Summary",
		Description: desc,
		Color:       scoreColor(summary),
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "User " + sess.UserID,
		},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

func scoreColor(s coach.Summary) int {
	switch {
	case s.QuestionsAnswered == 0:
		return embedColorYellow
	case s.TotalScore >= 75:
		return embedColorGreen
	case s.TotalScore >= 50:
		return embedColorYellow
	default:
		return embedColorRed
	}
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.1f / 100", v)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
