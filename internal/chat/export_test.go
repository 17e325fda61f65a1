// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExport(t *testing.T) {
	t.Run("renders labels, content, and separators in order", func(t *testing.T) {
		transcript := []Message{
			{Role: RoleAssistant, Content: OpeningMessage},
			{Role: RoleUser, Content: "أشعر بالقلق"},
			{Role: RoleAssistant, Content: "ما الموقف الذي أثار هذا الشعور؟"},
		}

		want := "المساعد العلاجي:\n" + OpeningMessage +
			"\n\n---------------------------------\n\n" +
			"أنت:\nأشعر بالقلق" +
			"\n\n---------------------------------\n\n" +
			"المساعد العلاجي:\nما الموقف الذي أثار هذا الشعور؟"

		assert.Equal(t, want, Export(transcript))
	})

	t.Run("deterministic over the same transcript", func(t *testing.T) {
		transcript := []Message{
			{Role: RoleAssistant, Content: OpeningMessage},
			{Role: RoleUser, Content: "مرحبا"},
		}

		assert.Equal(t, Export(transcript), Export(transcript))
	})

	t.Run("empty transcript exports to empty string", func(t *testing.T) {
		assert.Empty(t, Export(nil))
	})
}

func TestMessage_IsSummary(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		want    bool
	}{
		{
			name:    "assistant summary",
			message: Message{Role: RoleAssistant, Content: "ملخص الجلسة العلاجية:\nالموقف: ..."},
			want:    true,
		},
		{
			name:    "leading whitespace is tolerated",
			message: Message{Role: RoleAssistant, Content: "  \nملخص الجلسة العلاجية: الموقف"},
			want:    true,
		},
		{
			name:    "user message with the marker is not a summary",
			message: Message{Role: RoleUser, Content: "ملخص الجلسة العلاجية:"},
			want:    false,
		},
		{
			name:    "ordinary assistant reply",
			message: Message{Role: RoleAssistant, Content: "ما الموقف الذي أثار هذا الشعور؟"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.message.IsSummary())
		})
	}
}
