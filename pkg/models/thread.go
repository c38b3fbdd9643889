package models

// Thread is the canonical conversation between one customer identity and
// a business on one platform.
type Thread struct {
	ID       string `json:"id"`
	Business string `json:"business_id"`
	Platform string `json:"platform"`
	// Customer is the stable identity key used for thread resolution.
	Customer string `json:"customer_identity"`
	// CustomerName is display-only and may be updated after creation.
	CustomerName string `json:"customer_name,omitempty"`
	// Messages is append-only, ordered by (created_ts, id).
	Messages   []Message `json:"messages"`
	Unread     int       `json:"unread_count"`
	IsFlagged  bool      `json:"is_flagged"`
	IsArchived bool      `json:"is_archived"`
	// LastActivityTS equals the timestamp of the last message (ns).
	LastActivityTS int64 `json:"last_activity_ts"`
	// CreatedTS records first contact (ns).
	CreatedTS int64 `json:"created_ts"`
	// Version increments on every mutation to messages, flags or
	// customer name. Cached derived state (e.g. suggestions) keys on it.
	Version uint64 `json:"version"`
}

// Summary is the listing projection of a thread served by the query
// engine; full message history is fetched per thread.
type Summary struct {
	ID             string `json:"id"`
	Platform       string `json:"platform"`
	Customer       string `json:"customer_identity"`
	CustomerName   string `json:"customer_name,omitempty"`
	LastContent    string `json:"last_message_content,omitempty"`
	Unread         int    `json:"unread_count"`
	IsFlagged      bool   `json:"is_flagged"`
	IsArchived     bool   `json:"is_archived"`
	LastActivityTS int64  `json:"last_activity_ts"`
	MessageCount   int    `json:"message_count"`
}

// FlagPatch is a partial update to a thread's operational flags; nil
// fields are left untouched. When ExpectedVersion is set the update only
// applies if the thread is still at that version.
type FlagPatch struct {
	IsFlagged       *bool   `json:"is_flagged,omitempty"`
	IsArchived      *bool   `json:"is_archived,omitempty"`
	ExpectedVersion *uint64 `json:"expected_version,omitempty"`
}

// Summarize projects a thread into its listing form.
func (t *Thread) Summarize() Summary {
	s := Summary{
		ID:             t.ID,
		Platform:       t.Platform,
		Customer:       t.Customer,
		CustomerName:   t.CustomerName,
		Unread:         t.Unread,
		IsFlagged:      t.IsFlagged,
		IsArchived:     t.IsArchived,
		LastActivityTS: t.LastActivityTS,
		MessageCount:   len(t.Messages),
	}
	if n := len(t.Messages); n > 0 {
		s.LastContent = t.Messages[n-1].Content
	}
	return s
}
