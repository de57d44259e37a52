// Package chatter holds the canned viewer lines used to simulate chat.
package chatter

import (
	"fmt"
	"math/rand"
	"net/url"
)

// Line is one canned viewer message.
type Line struct {
	Name   string
	Avatar string
	Text   string
}

var (
	users = []string{"Sarah J.", "Mike Tech"}

	messages = []string{"Hello!", "Nice stream!", "Cool setup!", "🔥🔥🔥"}
)

// AvatarFor returns the generated initials avatar for a display name.
func AvatarFor(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random", url.QueryEscape(name))
}

// Users returns the simulated chatter names.
func Users() []string {
	return append([]string(nil), users...)
}

// Messages returns the simulated chat lines.
func Messages() []string {
	return append([]string(nil), messages...)
}

// Random picks a canned user and line using r.
func Random(r *rand.Rand) Line {
	name := users[r.Intn(len(users))]
	return Line{
		Name:   name,
		Avatar: AvatarFor(name),
		Text:   messages[r.Intn(len(messages))],
	}
}
