// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

// Package textnorm normalizes user-entered message text before it enters the
// transcript or the model session.
//
// # Why normalize?
//
// The companion converses in Arabic, where the same visible text can be
// encoded with different combining-mark sequences. Normalizing to NFC keeps
// the summary-marker prefix check and transcript exports byte-deterministic
// across input methods.
package textnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Clean trims surrounding whitespace and normalizes the text to NFC.
//
// An all-whitespace input collapses to the empty string, which callers treat
// as "nothing to send".
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsBlank reports whether the text trims to nothing.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
