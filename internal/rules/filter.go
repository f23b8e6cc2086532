// Package rules implements the stateless per-message predicates that decide
// whether a monitor should look at a message at all: chat scope, user scope,
// precise-ID allow-lists and block lists.
package rules

import (
	"strconv"
	"strings"

	"github.com/tg-sentinel-go/internal/models"
)

// channelIDBase is the offset Telegram applies to channel ids in their full
// "-100…" form. Peer ids for channels come in both the full and the bare
// form depending on the transport path, so scope checks compare both.
const channelIDBase int64 = 1000000000000

// ShortID strips the -100 prefix from a channel-style id. Ids that do not
// carry the prefix are returned unchanged.
func ShortID(id int64) int64 {
	if id < 0 {
		s := strconv.FormatInt(id, 10)
		if strings.HasPrefix(s, "-100") {
			if short, err := strconv.ParseInt(s[4:], 10, 64); err == nil {
				return short
			}
		}
	}
	return id
}

// FullChannelID converts a bare channel id into the full -100… form.
func FullChannelID(id int64) int64 {
	if id < 0 {
		return id
	}
	return -channelIDBase - id
}

// Passes applies the layered scope filters of cfg to msg, short-circuiting on
// the first failing check. It is a pure predicate, safe to call speculatively.
func Passes(msg *models.Message, cfg *models.MonitorConfig, selfID int64) bool {
	// Never act on the account's own messages.
	if msg.Sender.ID == selfID {
		return false
	}
	if len(cfg.Chats) > 0 && !containsInt64(cfg.Chats, msg.ChatID) {
		return false
	}
	if !matchUserScope(msg, cfg) {
		return false
	}
	return matchPreciseIDs(msg, cfg)
}

func matchUserScope(msg *models.Message, cfg *models.MonitorConfig) bool {
	if len(cfg.Users) == 0 {
		return true
	}
	sender := msg.Sender
	switch cfg.UserMatchBy {
	case models.UserByID:
		id := strconv.FormatInt(sender.ID, 10)
		short := strconv.FormatInt(ShortID(sender.ID), 10)
		for _, u := range cfg.Users {
			if u == id || u == short {
				return true
			}
		}
		return false
	case models.UserByUsername:
		username := strings.ToLower(sender.Username)
		for _, u := range cfg.Users {
			if strings.ToLower(u) == username {
				return true
			}
		}
		return false
	case models.UserByDisplayName:
		name := sender.FullName()
		for _, u := range cfg.Users {
			if u == name {
				return true
			}
		}
		return false
	}
	return true
}

// matchPreciseIDs enforces the bot/channel/group allow-lists. When any list is
// non-empty the message must match at least one listed identity. Channel ids
// are compared in both the full -100… and the bare form; the reconciliation is
// best-effort and intentionally permissive.
func matchPreciseIDs(msg *models.Message, cfg *models.MonitorConfig) bool {
	if len(cfg.BotIDs) == 0 && len(cfg.ChannelIDs) == 0 && len(cfg.GroupIDs) == 0 {
		return true
	}

	senderID := msg.Sender.ID

	if msg.Sender.IsBot && containsInt64(cfg.BotIDs, senderID) {
		return true
	}

	for _, id := range cfg.ChannelIDs {
		if msg.ChatID == id {
			return true
		}
		if ShortID(id) == senderID {
			return true
		}
		if id == FullChannelID(senderID) {
			return true
		}
	}

	for _, id := range cfg.GroupIDs {
		if senderID == id || msg.ChatID == id {
			return true
		}
	}

	return false
}

// Blocked reports whether any of the config's block lists reject the message:
// sender id, sender-as-bot id, chat id, or the forwarded-from channel id.
func Blocked(msg *models.Message, cfg *models.MonitorConfig) bool {
	if containsInt64(cfg.BlockedUsers, msg.Sender.ID) {
		return true
	}
	if msg.Sender.IsBot && containsInt64(cfg.BlockedBots, msg.Sender.ID) {
		return true
	}
	if containsInt64(cfg.BlockedChannels, msg.ChatID) {
		return true
	}
	if msg.ForwardFromChannelID != 0 && containsInt64(cfg.BlockedChannels, msg.ForwardFromChannelID) {
		return true
	}
	return false
}

func containsInt64(list []int64, v int64) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
