package core

import (
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailTemplates(t *testing.T) {
	require.NoError(t, ParseEmailTemplates())
	for _, name := range []string{"invitation", "password_reset"} {
		entry, ok := templates[name]
		require.True(t, ok, name)
		assert.NotNil(t, entry.text, name)
		assert.NotNil(t, entry.html, name)
	}
	_, ok := templates["_base"]
	assert.False(t, ok)
}

func TestEmailMessage_Render(t *testing.T) {
	conf := NewTestConfig()

	tests := []struct {
		name     string
		msg      EmailMessage
		wantText []string
		wantHTML []string
		wantErr  bool
	}{
		{
			name: "invitation",
			msg: EmailMessage{
				TemplateName: "invitation",
				TemplateData: map[string]interface{}{
					"InviterName":      "Alice",
					"OrganizationName": "Acme",
					"Role":             "member",
					"URL":              conf.FrontendBaseURL + "/invitation/tok",
					"ExpiresAt":        time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC),
				},
			},
			wantText: []string{"Alice invited you to join Acme", conf.FrontendBaseURL + "/invitation/tok", "March 8, 2024", "The " + conf.AppName + " team"},
			wantHTML: []string{"<strong>Acme</strong>", `href="` + conf.FrontendBaseURL + `/invitation/tok"`},
		},
		{
			name: "password reset",
			msg: EmailMessage{
				TemplateName: "password_reset",
				TemplateData: map[string]interface{}{"Name": "Jane", "URL": "http://reset"},
			},
			wantText: []string{"Hello Jane,", "http://reset"},
			wantHTML: []string{"http://reset"},
		},
		{
			name:     "plain body",
			msg:      EmailMessage{BodyStr: "just text"},
			wantText: []string{"just text"},
		},
		{
			name:    "missing data key",
			msg:     EmailMessage{TemplateName: "password_reset", TemplateData: map[string]interface{}{"Name": "Jane"}},
			wantErr: true,
		},
		{
			name:    "unknown template",
			msg:     EmailMessage{TemplateName: "nope"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			msg.To = []mail.Address{{Address: "x@y.com"}}
			err := msg.Render(conf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.wantText {
				assert.Contains(t, msg.TextContent, s)
			}
			for _, s := range tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, s)
			}
			assert.True(t, msg.HasContent())
		})
	}
}
