// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package chat owns the conversation transcript and its link to the external
model session.

Architecture:

  - Message: Immutable transcript entry, append-only, insertion order is
    display and export order.
  - Controller: Serializes sends against one model session. At most one send
    is in flight at a time, tracked by the pending flag.
  - Manager: Activates one controller per signed-in session and releases it
    on sign-out.
  - Export: A pure projection of the transcript into the downloadable text
    format.
*/
package chat

import (
	"strings"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SummaryMarker prefixes an assistant message that carries the closing
// session summary. The check trims first to tolerate model output variations.
const SummaryMarker = "ملخص الجلسة العلاجية:"

// Message is one immutable transcript entry. IDs are UUIDv7, so they sort in
// creation order.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// IsSummary reports whether the message is a session summary: an assistant
// message whose trimmed content starts with [SummaryMarker].
func (m Message) IsSummary() bool {
	return m.Role == RoleAssistant && strings.HasPrefix(strings.TrimSpace(m.Content), SummaryMarker)
}
