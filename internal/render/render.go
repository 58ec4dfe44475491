// Package render turns role-tagged text and sources into display messages.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"burkina-qa/internal/askapi"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Bullet replaces leading "-" and "*" list markers.
const Bullet = "•"

var (
	listMarker  = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Message is a single transcript item ready for display
type Message struct {
	Role      Role
	Text      string
	Sources   []askapi.Source
	Speakable bool
}

// Sanitize strips lightweight markup left by the generator: bold markers,
// list markers, runs of blank lines and surrounding whitespace.
func Sanitize(text string) string {
	text = lineEndings.Replace(text)
	text = strings.ReplaceAll(text, "**", "")
	text = listMarker.ReplaceAllString(text, Bullet+" ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Render builds the display message. Speech playback is offered only on
// non-empty assistant messages when a synthesizer exists.
func Render(role Role, text string, sources []askapi.Source, canSpeak bool) Message {
	clean := Sanitize(text)
	return Message{
		Role:      role,
		Text:      clean,
		Sources:   sources,
		Speakable: role == RoleAssistant && canSpeak && clean != "",
	}
}

// SourceLine formats a source as "label (score: 0.812)".
func SourceLine(src askapi.Source) string {
	return fmt.Sprintf("%s (score: %.3f)", src.Label(), src.Score)
}

// SourceLines formats every source of the message.
func (m Message) SourceLines() []string {
	lines := make([]string, len(m.Sources))
	for i, src := range m.Sources {
		lines[i] = SourceLine(src)
	}
	return lines
}
