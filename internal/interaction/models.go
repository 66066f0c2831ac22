package interaction

import (
	"time"
)

// Interaction types
const (
	TypeComment = "comment"
	TypeReply   = "reply"
	TypeMention = "mention"
	TypeDM      = "dm"
)

// Action statuses set by the action executor after a committed action ran
const (
	ActionStatusPending   = "pending"
	ActionStatusDone      = "done"
	ActionStatusFailed    = "failed"
	ActionStatusForReview = "awaiting_approval"
)

// Interaction is one inbound social item to be routed (comment, reply,
// mention or DM). Once ProcessedByRuleID is set the interaction is terminal:
// no rule may evaluate or act on it again.
type Interaction struct {
	ID         string                 `json:"id"`
	Scope      string                 `json:"scope"`
	Platform   string                 `json:"platform"`
	Type       string                 `json:"type"`
	Text       string                 `json:"text"`
	AuthorID   string                 `json:"authorId"`
	AuthorName string                 `json:"authorName"`
	ChannelID  string                 `json:"channelId"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	ActionStatus string `json:"actionStatus,omitempty"`
	ActionDetail string `json:"actionDetail,omitempty"`

	ProcessedByRuleID *int64     `json:"processedByRuleId,omitempty"`
	ProcessedAt       *time.Time `json:"processedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Processed reports whether the interaction has already been committed to a rule
func (i *Interaction) Processed() bool {
	return i.ProcessedByRuleID != nil
}

// FieldMap flattens the interaction into the variable map used by structured
// condition evaluation. Metadata keys are exposed under "metadata.<key>".
func (i *Interaction) FieldMap() map[string]interface{} {
	fields := map[string]interface{}{
		"id":          i.ID,
		"platform":    i.Platform,
		"type":        i.Type,
		"text":        i.Text,
		"author_id":   i.AuthorID,
		"author_name": i.AuthorName,
		"channel_id":  i.ChannelID,
	}
	for key, value := range i.Metadata {
		fields["metadata."+key] = value
	}
	return fields
}
