// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package textnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ziedbenboubaker/cbt-app/pkg/textnorm"
)

/*
TestClean verifies trimming and NFC normalization.
*/
func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims_whitespace", "  مرحبا  ", "مرحبا"},
		{"keeps_interior_whitespace", "كيف حالك", "كيف حالك"},
		{"collapses_blank_to_empty", "   \n\t ", ""},
		// U+0065 U+0301 (e + combining acute) composes to U+00E9 under NFC.
		{"nfc_composition", "é", "é"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textnorm.Clean(tt.input))
		})
	}
}

/*
TestIsBlank verifies blank detection.
*/
func TestIsBlank(t *testing.T) {
	assert.True(t, textnorm.IsBlank(""))
	assert.True(t, textnorm.IsBlank("   \n"))
	assert.False(t, textnorm.IsBlank("أشعر بالقلق"))
}
