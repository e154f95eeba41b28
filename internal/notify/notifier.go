package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"osintdeck/internal/logger"

	nfy "github.com/nikoksr/notify"
	nfydd "github.com/nikoksr/notify/service/dingding"
	nfydc "github.com/nikoksr/notify/service/discord"
	nfyhttp "github.com/nikoksr/notify/service/http"
	nfylark "github.com/nikoksr/notify/service/lark"
	nfyslack "github.com/nikoksr/notify/service/slack"
	nfytg "github.com/nikoksr/notify/service/telegram"
)

// SettingKeys lists the settings rows Reload reads.
var SettingKeys = []string{
	"notify_telegram_token", "notify_telegram_chat_id",
	"notify_dingtalk_token", "notify_dingtalk_secret",
	"notify_lark_webhook_url",
	"notify_discord_token", "notify_discord_channel_id",
	"notify_slack_token", "notify_slack_channel_id",
	"notify_wecom_webhook_url",
	"notify_webhook_url", "notify_webhook_method", "notify_webhook_headers", "notify_webhook_template",
	"notify_min_level",
}

// SecretKeys are masked when settings are returned to clients.
var SecretKeys = map[string]bool{
	"notify_telegram_token": true,
	"notify_dingtalk_token": true, "notify_dingtalk_secret": true,
	"notify_discord_token": true,
	"notify_slack_token":   true,
}

// Settings is the read side of the settings table.
type Settings interface {
	GetAll() (map[string]string, error)
}

// Manager forwards alerts to external chat channels.
type Manager struct {
	mu       sync.RWMutex
	notifier *nfy.Notify
	names    []string
	minLevel int
}

func NewManager() *Manager {
	return &Manager{notifier: nfy.New(), minLevel: levelWarning}
}

type channelBuilder func(cfg map[string]string) (nfy.Notifier, error)

var builders = []struct {
	name  string
	build channelBuilder
}{
	{"telegram", buildTelegram},
	{"dingtalk", buildDingTalk},
	{"lark", buildLark},
	{"discord", buildDiscord},
	{"slack", buildSlack},
	{"wecom", buildWeCom},
	{"webhook", buildWebhook},
}

// Reload rebuilds the channel set from notify_* settings.
func (m *Manager) Reload(settings Settings) error {
	all, err := settings.GetAll()
	if err != nil {
		return err
	}
	cfg := make(map[string]string, len(SettingKeys))
	for _, k := range SettingKeys {
		cfg[k] = strings.TrimSpace(all[k])
	}

	n := nfy.New()
	var names []string
	for _, b := range builders {
		svc, err := b.build(cfg)
		if err != nil {
			logger.Notify.Warn().Err(err).Str("channel", b.name).Msg("通知渠道初始化失败")
			continue
		}
		if svc == nil {
			continue
		}
		n.UseServices(svc)
		names = append(names, b.name)
	}

	m.mu.Lock()
	m.notifier = n
	m.names = names
	m.minLevel = parseLevel(cfg["notify_min_level"])
	m.mu.Unlock()

	logger.Notify.Info().Int("channels", len(names)).Strs("names", names).Msg("通知渠道已重载")
	return nil
}

func buildTelegram(cfg map[string]string) (nfy.Notifier, error) {
	token, chat := cfg["notify_telegram_token"], cfg["notify_telegram_chat_id"]
	if token == "" || chat == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q", chat)
	}
	svc, err := nfytg.New(token)
	if err != nil {
		return nil, err
	}
	svc.AddReceivers(id)
	return svc, nil
}

func buildDingTalk(cfg map[string]string) (nfy.Notifier, error) {
	if cfg["notify_dingtalk_token"] == "" {
		return nil, nil
	}
	return nfydd.New(&nfydd.Config{Token: cfg["notify_dingtalk_token"], Secret: cfg["notify_dingtalk_secret"]}), nil
}

func buildLark(cfg map[string]string) (nfy.Notifier, error) {
	if cfg["notify_lark_webhook_url"] == "" {
		return nil, nil
	}
	return nfylark.NewWebhookService(cfg["notify_lark_webhook_url"]), nil
}

func buildDiscord(cfg map[string]string) (nfy.Notifier, error) {
	token, channel := cfg["notify_discord_token"], cfg["notify_discord_channel_id"]
	if token == "" || channel == "" {
		return nil, nil
	}
	svc := nfydc.New()
	if err := svc.AuthenticateWithBotToken(token); err != nil {
		return nil, err
	}
	svc.AddReceivers(channel)
	return svc, nil
}

func buildSlack(cfg map[string]string) (nfy.Notifier, error) {
	token, channel := cfg["notify_slack_token"], cfg["notify_slack_channel_id"]
	if token == "" || channel == "" {
		return nil, nil
	}
	svc := nfyslack.New(token)
	svc.AddReceivers(channel)
	return svc, nil
}

// 企业微信机器人: {"msgtype":"text","text":{"content":"..."}}
func buildWeCom(cfg map[string]string) (nfy.Notifier, error) {
	url := cfg["notify_wecom_webhook_url"]
	if url == "" {
		return nil, nil
	}
	svc := nfyhttp.New()
	svc.AddReceivers(&nfyhttp.Webhook{
		URL:         url,
		Header:      http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		ContentType: "application/json; charset=utf-8",
		Method:      http.MethodPost,
		BuildPayload: func(subject, message string) any {
			return fmt.Sprintf(`{"msgtype":"text","text":{"content":"%s\n%s"}}`, escapeJSON(subject), escapeJSON(message))
		},
	})
	return svc, nil
}

// buildWebhook posts to a generic endpoint. The template may embed {message};
// a template that looks like JSON switches the content type.
func buildWebhook(cfg map[string]string) (nfy.Notifier, error) {
	url := cfg["notify_webhook_url"]
	if url == "" {
		return nil, nil
	}
	method := strings.ToUpper(cfg["notify_webhook_method"])
	if method == "" {
		method = http.MethodPost
	}
	hdrs := parseHeaders(cfg["notify_webhook_headers"])
	tmpl := cfg["notify_webhook_template"]
	contentType := "text/plain; charset=utf-8"
	if looksLikeJSON(tmpl) {
		contentType = "application/json; charset=utf-8"
	}

	svc := nfyhttp.New()
	svc.AddReceivers(&nfyhttp.Webhook{
		URL:          url,
		Header:       hdrs,
		ContentType:  contentType,
		Method:       method,
		BuildPayload: func(subject, message string) any { return renderTemplate(tmpl, subject, message) },
	})
	return svc, nil
}

// parseHeaders reads "Name: value, Other: value".
func parseHeaders(s string) http.Header {
	h := make(http.Header)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), ":")
		if ok && strings.TrimSpace(k) != "" {
			h.Set(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}
	return h
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

func renderTemplate(tmpl, subject, message string) string {
	text := subject + "\n" + message
	if tmpl == "" {
		return text
	}
	if looksLikeJSON(tmpl) {
		text = escapeJSON(text)
	}
	return strings.ReplaceAll(tmpl, "{message}", text)
}

// Send dispatches text to every configured channel.
func (m *Manager) Send(ctx context.Context, text string) error {
	m.mu.RLock()
	n := m.notifier
	m.mu.RUnlock()
	if n == nil {
		return nil
	}
	if err := n.Send(ctx, "OSINTDeck", text); err != nil {
		logger.Notify.Warn().Err(err).Msg("通知发送失败")
		return err
	}
	return nil
}

// Forward sends a notification when its type reaches the configured minimum level.
func (m *Manager) Forward(ctx context.Context, typ, title, message string) {
	m.mu.RLock()
	allowed := len(m.names) > 0 && parseLevel(typ) >= m.minLevel
	m.mu.RUnlock()
	if !allowed {
		return
	}
	_ = m.Send(ctx, formatAlert(typ, title, message))
}

func formatAlert(typ, title, message string) string {
	emoji := "ℹ️"
	switch typ {
	case TypeError:
		emoji = "\U0001f534"
	case TypeWarning:
		emoji = "\U0001f7e1"
	case TypeSuccess:
		emoji = "\U0001f7e2"
	}
	text := fmt.Sprintf("%s [%s] %s", emoji, typ, title)
	if message != "" && len(message) < 200 {
		text += "\n" + message
	}
	return text
}

const (
	levelInfo = iota
	levelSuccess
	levelWarning
	levelError
)

// parseLevel orders notification types; anything unknown counts as warning.
func parseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TypeInfo:
		return levelInfo
	case TypeSuccess:
		return levelSuccess
	case TypeError:
		return levelError
	}
	return levelWarning
}

func (m *Manager) HasChannels() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names) > 0
}

// ChannelNames returns a copy of the configured channel names.
func (m *Manager) ChannelNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func escapeJSON(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}
