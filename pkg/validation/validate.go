package validation

import (
	"fmt"
	"strings"

	"inboxd/pkg/models"
)

// Rules holds the configurable limits applied to normalized drafts and
// outbound reply content.
type Rules struct {
	MaxContentLen int
}

var rules = Rules{MaxContentLen: 8192}

// SetRules installs the active rule set (called once at startup).
func SetRules(r Rules) {
	if r.MaxContentLen <= 0 {
		r.MaxContentLen = 8192
	}
	rules = r
}

// ValidateDraft checks a normalized message draft before it enters the
// store. Sender identity and content are required.
func ValidateDraft(d models.MessageDraft) error {
	var errs []string
	if strings.TrimSpace(d.Sender) == "" {
		errs = append(errs, "sender identity is required")
	}
	if strings.TrimSpace(d.Content) == "" {
		errs = append(errs, "content is required")
	}
	if d.Platform == "" {
		errs = append(errs, "platform is required")
	}
	if len(d.Content) > rules.MaxContentLen {
		errs = append(errs, fmt.Sprintf("content exceeds %d bytes", rules.MaxContentLen))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateReplyContent checks operator-supplied reply text.
func ValidateReplyContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: reply content must not be empty", models.ErrValidation)
	}
	if len(content) > rules.MaxContentLen {
		return fmt.Errorf("%w: reply content exceeds %d bytes", models.ErrValidation, rules.MaxContentLen)
	}
	return nil
}
