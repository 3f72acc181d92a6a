package memory

import "context"

// Store is the persistence surface the rest of the agent depends on.
// SQLiteStore is the canonical implementation; NullStore serves setups
// that opt out of persistence entirely.
type Store interface {
	AppendTurn(ctx context.Context, t Turn) error
	RecentTurns(ctx context.Context, userID, channelID string, limit int) ([]Turn, error)
	RecentGuildTurns(ctx context.Context, guildID string, limit int) ([]Turn, error)
	RecentAllTurns(ctx context.Context, limit int) ([]Turn, error)
	TurnCount(ctx context.Context) (int, error)
	ListPairs(ctx context.Context) ([]Pair, error)
	ListGuilds(ctx context.Context) ([]string, error)

	UpsertPairSummary(ctx context.Context, userID, channelID, summary string) error
	GetPairSummary(ctx context.Context, userID, channelID string) (string, error)
	UpsertGuildSummary(ctx context.Context, guildID, summary string) error
	GetGuildSummary(ctx context.Context, guildID string) (string, error)

	AppendContextHint(ctx context.Context, userID, channelID, text string) error
	RecentContextHints(ctx context.Context, userID, channelID string, limit int) ([]string, error)

	UpsertUserProfile(ctx context.Context, p UserProfile) error
	GetUserProfile(ctx context.Context, userID string) (UserProfile, error)

	GetPersona(ctx context.Context) (string, error)
	SetPersona(ctx context.Context, text string) error

	ResetAll(ctx context.Context) error
	Close() error
}

// NullStore discards writes and returns empty reads. Conversations still
// work through the in-process ring; nothing survives a restart.
type NullStore struct {
	persona string
}

func NewNullStore(defaultPersona string) *NullStore {
	return &NullStore{persona: defaultPersona}
}

func (n *NullStore) AppendTurn(ctx context.Context, t Turn) error { return nil }
func (n *NullStore) RecentTurns(ctx context.Context, userID, channelID string, limit int) ([]Turn, error) {
	return nil, nil
}
func (n *NullStore) RecentGuildTurns(ctx context.Context, guildID string, limit int) ([]Turn, error) {
	return nil, nil
}
func (n *NullStore) RecentAllTurns(ctx context.Context, limit int) ([]Turn, error) {
	return nil, nil
}
func (n *NullStore) TurnCount(ctx context.Context) (int, error)    { return 0, nil }
func (n *NullStore) ListPairs(ctx context.Context) ([]Pair, error) { return nil, nil }
func (n *NullStore) ListGuilds(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (n *NullStore) UpsertPairSummary(ctx context.Context, userID, channelID, summary string) error {
	return nil
}
func (n *NullStore) GetPairSummary(ctx context.Context, userID, channelID string) (string, error) {
	return "", nil
}
func (n *NullStore) UpsertGuildSummary(ctx context.Context, guildID, summary string) error {
	return nil
}
func (n *NullStore) GetGuildSummary(ctx context.Context, guildID string) (string, error) {
	return "", nil
}
func (n *NullStore) AppendContextHint(ctx context.Context, userID, channelID, text string) error {
	return nil
}
func (n *NullStore) RecentContextHints(ctx context.Context, userID, channelID string, limit int) ([]string, error) {
	return nil, nil
}
func (n *NullStore) UpsertUserProfile(ctx context.Context, p UserProfile) error { return nil }
func (n *NullStore) GetUserProfile(ctx context.Context, userID string) (UserProfile, error) {
	return UserProfile{UserID: userID}, nil
}
func (n *NullStore) GetPersona(ctx context.Context) (string, error) { return n.persona, nil }
func (n *NullStore) SetPersona(ctx context.Context, text string) error {
	n.persona = text
	return nil
}
func (n *NullStore) ResetAll(ctx context.Context) error { return nil }
func (n *NullStore) Close() error                       { return nil }
