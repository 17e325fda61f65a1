// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import "strings"

// Speaker labels and the separator line used in the exported transcript.
// These are part of the export format: changing them changes every download.
const (
	labelUser       = "أنت"
	labelAssistant  = "المساعد العلاجي"
	exportSeparator = "\n\n---------------------------------\n\n"
)

// Export renders the transcript as a single text blob: each message as
// "<label>:\n<content>", messages joined by the separator line.
//
// Pure and order-preserving: the same transcript always yields byte-identical
// output.
func Export(messages []Message) string {
	rendered := make([]string, 0, len(messages))

	for _, message := range messages {
		label := labelAssistant
		if message.Role == RoleUser {
			label = labelUser
		}
		rendered = append(rendered, label+":\n"+message.Content)
	}

	return strings.Join(rendered, exportSeparator)
}
