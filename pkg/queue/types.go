package queue

// Job statuses. A job is pending from enqueue until its reply has been
// handed to the channel adapter, then delivered. There is no failed state:
// undeliverable jobs stay pending and are picked up again by reload.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
)

// Job is one deferred reply obligation: the user prompt we still owe an
// answer for, and where to send it.
type Job struct {
	ID        string
	UserID    string
	ChannelID string
	Prompt    string
	Status    string
	CreatedAt int64
}
