package core

import (
	"bytes"
	"context"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/academia/fs"
)

var (
	templates tmplCache
	tmplInit  sync.Once
	tmplDir   = "templates/email"
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently; failures are only logged.
		SendMessages(messages ...*EmailMessage)
		// SendMessage sends msg and reports whether it was delivered.
		SendMessage(ctx context.Context, msg *EmailMessage) error
	}
)

func (m *EmailMessage) renderText(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	entry, ok := templates[m.TemplateName]
	if !ok || entry.text == nil {
		return nil
	}
	var buff bytes.Buffer
	if err := entry.text.Execute(&buff, data); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData) error {
	if m.TemplateName == "" {
		return nil
	}

	entry, ok := templates[m.TemplateName]
	if !ok || entry.html == nil {
		return nil
	}
	var buff bytes.Buffer
	if err := entry.html.Execute(&buff, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render executes the message templates, if any, into TextContent and HTMLContent.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName != "" {
		if err := ParseEmailTemplates(); err != nil {
			return err
		}
		if _, ok := templates[m.TemplateName]; !ok {
			return errors.Errorf("email template %q not found", m.TemplateName)
		}
	}
	data := ContextData{
		AppName:         conf.AppName,
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
	if err := m.renderText(data); err != nil {
		return errors.Wrap(err, "rendering text")
	}
	return errors.Wrap(m.renderHTML(data), "rendering html")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

var errParseTemplates error

// ParseEmailTemplates parses the embedded email templates; only the first call does any work.
func ParseEmailTemplates() error {
	tmplInit.Do(func() { errParseTemplates = parseTemplates() })
	return errParseTemplates
}

func parseTemplates() error {
	templates = make(tmplCache)

	entries, err := fs.ReadDir(appfs.Templates, tmplDir)
	if err != nil {
		return errors.Wrap(err, "core.parseTemplates")
	}

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			entry = new(tmplCacheEntry)
			templates[name] = entry
		}

		base := path.Join(tmplDir, "_base"+ext)
		fp := path.Join(tmplDir, fname)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(appfs.Templates, base, fp)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("core.parseTemplates(%s)", fname))
			}
			entry.text = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(appfs.Templates, base, fp)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("core.parseTemplates(%s)", fname))
			}
			entry.html = tmpl.Option("missingkey=error")
		}
	}
	return nil
}
