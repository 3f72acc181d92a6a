package memory

import "time"

// Turn roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Turn is one recorded message against a (user, channel) pair. Immutable
// once written; removed only by pruning or a full reset.
type Turn struct {
	ID        int64
	UserID    string
	ChannelID string
	GuildID   string
	Role      string
	Text      string
	CreatedAt time.Time
}

// Pair identifies a conversation between one user and one channel.
type Pair struct {
	UserID    string
	ChannelID string
}

// PairSummary is the condensed long-term memory for a (user, channel)
// pair. One row per pair, replaced in place.
type PairSummary struct {
	UserID    string
	ChannelID string
	Summary   string
	UpdatedAt time.Time
}

// GuildSummary is the cross-user, channel-spanning counterpart.
type GuildSummary struct {
	GuildID   string
	Summary   string
	UpdatedAt time.Time
}

// ContextHint is a cheap locally computed short-term topic hint. Appended,
// not replaced; readers take only the most recent few.
type ContextHint struct {
	UserID    string
	ChannelID string
	Text      string
	CreatedAt time.Time
}

// UserProfile caches observed identity so prompts can render stable names
// even when the live directory is unavailable.
type UserProfile struct {
	UserID      string
	Username    string
	DisplayName string
	LastSeen    time.Time
}
