package models

// Direction of a message relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus tracks the lifecycle of an outbound message. Inbound
// messages carry an empty status.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Message is one inbound or outbound utterance within a thread. Stored
// messages are immutable except for DeliveryStatus transitions on
// outbound messages.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Direction Direction `json:"direction"`
	Sender    string    `json:"sender_identity"`
	Content   string    `json:"content"`
	Platform  string    `json:"platform"`
	// CreatedTS is the creation timestamp (ns).
	CreatedTS int64 `json:"created_ts"`
	// Status is set for outbound messages only.
	Status DeliveryStatus `json:"delivery_status,omitempty"`
	// ExternalID is the platform-native message id, used for dedup of
	// inbound messages. Empty for outbound messages until the connector
	// reports one.
	ExternalID string `json:"external_id,omitempty"`
}

// MessageDraft is a normalized message without identity; the store
// assigns ID and ThreadID on append.
type MessageDraft struct {
	Direction  Direction `json:"direction"`
	Sender     string    `json:"sender_identity"`
	Content    string    `json:"content"`
	Platform   string    `json:"platform"`
	CreatedTS  int64     `json:"created_ts"`
	ExternalID string    `json:"external_id,omitempty"`
	// CustomerName is display metadata carried alongside inbound drafts;
	// it updates the owning thread last-write-wins.
	CustomerName string `json:"customer_name,omitempty"`
}
