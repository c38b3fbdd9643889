// Package normalize converts heterogeneous connector payloads into
// canonical message drafts. It is stateless and safe for concurrent use.
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"inboxd/pkg/models"
	"inboxd/pkg/validation"
)

// Supported platform tags. The webhook listener routes payloads here by
// the path segment the connector posts to.
const (
	PlatformInstagram = "instagram"
	PlatformMessenger = "messenger"
	PlatformWhatsApp  = "whatsapp"
	PlatformX         = "x"
)

// KnownPlatform reports whether the tag names a supported connector.
func KnownPlatform(p string) bool {
	switch p {
	case PlatformInstagram, PlatformMessenger, PlatformWhatsApp, PlatformX:
		return true
	}
	return false
}

// Normalize maps a raw connector payload to canonical drafts. One
// payload can carry several events; events that are not customer
// messages (echoes, receipts) are skipped silently, while events that
// are customer messages but fail validation are counted in rejected and
// do not block the rest of the batch. The returned error is non-nil only
// when the payload as a whole cannot be interpreted.
func Normalize(platform string, payload []byte) (drafts []models.MessageDraft, rejected int, err error) {
	switch platform {
	case PlatformInstagram, PlatformMessenger:
		return normalizeGraph(platform, payload)
	case PlatformWhatsApp:
		return normalizeWhatsApp(payload)
	case PlatformX:
		return normalizeX(payload)
	default:
		return nil, 0, fmt.Errorf("%w: unknown platform %q", models.ErrValidation, platform)
	}
}

// graphPayload is the Meta Graph webhook shape shared by Messenger and
// Instagram messaging.
type graphPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Time      int64 `json:"time"`
		Messaging []struct {
			Sender struct {
				ID   string `json:"id"`
				Name string `json:"name,omitempty"`
			} `json:"sender"`
			Timestamp int64 `json:"timestamp"`
			Message   *struct {
				MID    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo,omitempty"`
			} `json:"message,omitempty"`
			Delivery json.RawMessage `json:"delivery,omitempty"`
			Read     json.RawMessage `json:"read,omitempty"`
		} `json:"messaging"`
	} `json:"entry"`
}

func normalizeGraph(platform string, payload []byte) ([]models.MessageDraft, int, error) {
	var p graphPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, 0, fmt.Errorf("%w: invalid %s payload: %v", models.ErrValidation, platform, err)
	}
	var out []models.MessageDraft
	rejected := 0
	for _, e := range p.Entry {
		for _, ev := range e.Messaging {
			// echoes and receipts are page-side events, not customer messages
			if ev.Message == nil || ev.Message.IsEcho || ev.Delivery != nil || ev.Read != nil {
				continue
			}
			d := models.MessageDraft{
				Direction:    models.DirectionInbound,
				Sender:       ev.Sender.ID,
				Content:      ev.Message.Text,
				Platform:     platform,
				CreatedTS:    msToNS(ev.Timestamp),
				ExternalID:   ev.Message.MID,
				CustomerName: ev.Sender.Name,
			}
			if err := validation.ValidateDraft(d); err != nil {
				rejected++
				continue
			}
			out = append(out, d)
		}
	}
	return out, rejected, nil
}

// whatsAppPayload is the Cloud API change-notification shape.
type whatsAppPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func normalizeWhatsApp(payload []byte) ([]models.MessageDraft, int, error) {
	var p whatsAppPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, 0, fmt.Errorf("%w: invalid whatsapp payload: %v", models.ErrValidation, err)
	}
	var out []models.MessageDraft
	rejected := 0
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			names := make(map[string]string, len(ch.Value.Contacts))
			for _, c := range ch.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range ch.Value.Messages {
				var body string
				if m.Text != nil {
					body = m.Text.Body
				}
				d := models.MessageDraft{
					Direction:    models.DirectionInbound,
					Sender:       m.From,
					Content:      body,
					Platform:     PlatformWhatsApp,
					CreatedTS:    secStringToNS(m.Timestamp),
					ExternalID:   m.ID,
					CustomerName: names[m.From],
				}
				if err := validation.ValidateDraft(d); err != nil {
					rejected++
					continue
				}
				out = append(out, d)
			}
		}
	}
	return out, rejected, nil
}

// xPayload is the direct-message event shape.
type xPayload struct {
	DirectMessageEvents []struct {
		ID               string `json:"id"`
		CreatedTimestamp string `json:"created_timestamp"`
		MessageCreate    *struct {
			SenderID    string `json:"sender_id"`
			MessageData struct {
				Text string `json:"text"`
			} `json:"message_data"`
		} `json:"message_create,omitempty"`
	} `json:"direct_message_events"`
	Users map[string]struct {
		Name string `json:"name"`
	} `json:"users"`
}

func normalizeX(payload []byte) ([]models.MessageDraft, int, error) {
	var p xPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, 0, fmt.Errorf("%w: invalid x payload: %v", models.ErrValidation, err)
	}
	var out []models.MessageDraft
	rejected := 0
	for _, ev := range p.DirectMessageEvents {
		if ev.MessageCreate == nil {
			continue
		}
		d := models.MessageDraft{
			Direction:  models.DirectionInbound,
			Sender:     ev.MessageCreate.SenderID,
			Content:    ev.MessageCreate.MessageData.Text,
			Platform:   PlatformX,
			CreatedTS:  msStringToNS(ev.CreatedTimestamp),
			ExternalID: ev.ID,
		}
		if u, ok := p.Users[ev.MessageCreate.SenderID]; ok {
			d.CustomerName = u.Name
		}
		if err := validation.ValidateDraft(d); err != nil {
			rejected++
			continue
		}
		out = append(out, d)
	}
	return out, rejected, nil
}

func msToNS(ms int64) int64 {
	if ms <= 0 {
		return time.Now().UTC().UnixNano()
	}
	return ms * int64(time.Millisecond)
}

func msStringToNS(s string) int64 {
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil || ms <= 0 {
		return time.Now().UTC().UnixNano()
	}
	return ms * int64(time.Millisecond)
}

func secStringToNS(s string) int64 {
	var sec int64
	if _, err := fmt.Sscanf(s, "%d", &sec); err != nil || sec <= 0 {
		return time.Now().UTC().UnixNano()
	}
	return sec * int64(time.Second)
}
