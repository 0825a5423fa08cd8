package chat

import "unicode/utf16"

var userColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57", "#FF9FF3",
	"#54A0FF", "#5F27CD", "#00D2D3", "#FF9F43", "#10AC84", "#EE5A6F",
	"#0ABDE3", "#3867D6", "#8854D0", "#FF7675", "#74B9FF", "#0984E3",
	"#00B894", "#00CEC9", "#FD79A8", "#FDCB6E", "#6C5CE7", "#A29BFE",
	"#E17055", "#DDA0DD", "#98FB98", "#F0E68C", "#FFB6C1", "#87CEEB",
}

var avatarEmojis = []string{
	"👤", "🧑", "👨", "👩", "🧒", "👴", "👵", "👶", "🧓", "👱",
	"👨‍💼", "👩‍💼", "👨‍🎓", "👩‍🎓", "👨‍⚕️", "👩‍⚕️", "👨‍🏫", "👩‍🏫", "👨‍💻", "👩‍💻",
	"🕵️", "💂", "👮", "👷", "🤴", "👸", "🦸", "🦹", "🧙", "🧚",
	"🎭", "🎨", "🎪", "🎯", "🎮", "🎲", "🎸", "🎺", "🎻", "🎤",
	"⚽", "🏀", "🏈", "⚾", "🎾", "🏐", "🏉", "🎱", "🏓", "🏸",
	"🌟", "⭐", "✨", "💫", "🔥", "💎", "🏆", "🥇", "🥈", "🥉",
}

const (
	BotUsername = "StreamedBot"
	BotColor    = "#00D2D3"
	BotAvatar   = "🤖"
)

// Identity is the display color and avatar derived from a username.
type Identity struct {
	Color  string `json:"color"`
	Avatar string `json:"avatar"`
}

// usernameHash is the 32-bit rolling hash h = h*31 + c over UTF-16 code
// units, so web clients derive the same identity for a name.
func usernameHash(name string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(name)) {
		h = (h << 5) - h + int32(u)
	}
	return h
}

// IdentityFor returns the stable display identity of username.
func IdentityFor(username string) Identity {
	h := int64(usernameHash(username))
	if h < 0 {
		h = -h
	}
	return Identity{
		Color:  userColors[h%int64(len(userColors))],
		Avatar: avatarEmojis[h%int64(len(avatarEmojis))],
	}
}
