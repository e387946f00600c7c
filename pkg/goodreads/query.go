// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package goodreads

import "strings"

// Trigger is the literal substring that marks a chat message as a book
// lookup request. The match is case-sensitive.
const Trigger = "#book"

// ContainsTrigger reports whether body contains the trigger token anywhere.
func ContainsTrigger(body string) bool {
	return strings.Contains(body, Trigger)
}

// BuildQuery turns a triggering message body into a search query string:
// every whitespace-delimited word that itself contains the trigger token is
// dropped, and the remaining words are joined with "+" in their original
// order.
func BuildQuery(body string) string {
	words := strings.Fields(body)
	kept := words[:0:0]
	for _, word := range words {
		if strings.Contains(word, Trigger) {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, "+")
}
