package bus

// InboundMessage is one user turn delivered by a chat channel adapter.
type InboundMessage struct {
	Channel     string // adapter name: "discord", "cli"
	SenderID    string
	ChatID      string // platform channel id
	GuildID     string
	Content     string
	DisplayName string
	Username    string
	Metadata    map[string]string
}

// OutboundMessage is a reply headed back to a chat channel adapter.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	// Mention, when set, asks the adapter to address this user explicitly.
	Mention string
}
