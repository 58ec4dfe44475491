package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"burkina-qa/internal/askapi"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold and gap", "**Étape 1**\n\n\n\nAllez au guichet.", "Étape 1\n\nAllez au guichet."},
		{"dash list", "Pièces :\n- CNIB\n- Photo", "Pièces :\n• CNIB\n• Photo"},
		{"star list indented", "  * un\n\t* deux", "• un\n• deux"},
		{"bold list item", "- **Casier** judiciaire", "• Casier judiciaire"},
		{"star without space kept", "*note", "*note"},
		{"crlf", "a\r\n\r\n\r\nb", "a\n\nb"},
		{"two newlines kept", "a\n\nb", "a\n\nb"},
		{"trim", "  \n texte \n ", "texte"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	once := Sanitize("**A**\n- b\n\n\n\nc")
	assert.Equal(t, once, Sanitize(once))
}

func TestRender_Scenario(t *testing.T) {
	sources := []askapi.Source{{Score: 0.812, Payload: map[string]any{"url": "https://dgi.bf/guide"}}}
	msg := Render(RoleAssistant, "**Étape 1**\n\n\n\nAllez au guichet.", sources, true)

	assert.Equal(t, "Étape 1\n\nAllez au guichet.", msg.Text)
	assert.Equal(t, []string{"https://dgi.bf/guide (score: 0.812)"}, msg.SourceLines())
	assert.True(t, msg.Speakable)
}

func TestRender_Speakable(t *testing.T) {
	assert.False(t, Render(RoleUser, "Bonjour", nil, true).Speakable)
	assert.False(t, Render(RoleAssistant, "Bonjour", nil, false).Speakable)
	assert.False(t, Render(RoleAssistant, " ** ", nil, true).Speakable)
	assert.True(t, Render(RoleAssistant, "Bonjour", nil, true).Speakable)
}

func TestSourceLine_Fallbacks(t *testing.T) {
	assert.Equal(t, "guide.pdf (score: 0.500)", SourceLine(askapi.Source{Score: 0.5, Payload: map[string]any{"file_name": "guide.pdf"}}))
	assert.Equal(t, "source inconnue (score: 0.123)", SourceLine(askapi.Source{Score: 0.1234}))
}
