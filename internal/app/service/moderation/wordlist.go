package moderation

// Marker tokens written into moderated text.
const (
	MaskToken   = "***"
	BlockMarker = "[BLOCKED]"
	LinkMarker  = "[LINK REMOVED]"
)

// profanity is matched on word boundaries in messages and as a substring in usernames.
var profanity = []string{
	"fuck", "shit", "bitch", "damn", "ass", "crap", "piss", "bastard",
	"whore", "slut", "cunt", "cock", "dick", "pussy", "fck", "fuk",
	"sht", "btch", "dmn", "wtf", "stfu", "asshole", "motherfucker",
	"bullshit", "goddamn", "hell", "bloody", "darn", "dammit",
	// inflections the bare stems miss on a word boundary
	"fucking", "fucker", "fucked", "fucks", "shitty", "bitches",
}

// harmfulPatterns are the violence/self-harm, hate/extremism and spam/scam categories.
var harmfulPatterns = []string{
	`(?i)\b(kill|die|suicide|hurt|harm|violence)\b`,
	`(?i)\b(hate|racist|nazi|terrorism)\b`,
	`(?i)\b(spam|scam|phishing)\b`,
}

const linkPattern = `(?i)(https?://[^\s]+|www\.[^\s]+|\b[a-z0-9-]+\.[a-z]{2,}\b)`

// reservedNames may not appear anywhere in a chat username.
var reservedNames = []string{
	"admin", "administrator", "mod", "moderator", "support", "staff",
	"owner", "manager", "supervisor", "chatbot", "bot", "system",
	"streamed", "official", "help", "streamedbot", "root", "user",
}
