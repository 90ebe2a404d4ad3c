package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"viralshorts/manager-go/internal/utils"
)

const DefaultAPIURL = "https://slack.com/api"

// Client posts to the Slack Web API with a bot token.
type Client struct {
	APIURL   string
	BotToken string
	HTTP     *http.Client
}

func NewClient(botToken string) *Client {
	return &Client{
		APIURL:   DefaultAPIURL,
		BotToken: botToken,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// PostMessage posts text to channel and returns the created message ts.
// If threadTS is empty, the returned ts can be used as a thread root.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(c.BotToken) == "" {
		return "", errors.New("bot token missing")
	}
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("channel missing")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text missing")
	}

	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	base := c.APIURL
	if base == "" {
		base = DefaultAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.BotToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("slack chat.postMessage status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
		TS      string `json:"ts"`
		Message struct {
			TS string `json:"ts"`
		} `json:"message"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", err
	}
	if !decoded.OK {
		if decoded.Error == "" {
			decoded.Error = "chat.postMessage failed"
		}
		return "", errors.New(decoded.Error)
	}
	if decoded.TS != "" {
		return decoded.TS, nil
	}
	return decoded.Message.TS, nil
}

// Notifier reports pipeline events to one channel. A nil or unconfigured
// Notifier drops messages.
type Notifier struct {
	Client  *Client
	Channel string
}

func NewNotifier(botToken, channel string) *Notifier {
	if botToken == "" || channel == "" {
		return nil
	}
	return &Notifier{Client: NewClient(botToken), Channel: channel}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.Client != nil && n.Channel != ""
}

// Notify posts text. Failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, format string, args ...any) {
	if !n.Enabled() {
		return
	}
	text := fmt.Sprintf(format, args...)
	if _, err := n.Client.PostMessage(ctx, n.Channel, text, ""); err != nil {
		utils.Warn("slack notify failed", "channel", n.Channel, "err", err)
	}
}
