package service

import (
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"strings"

	"ieee-registration-bot/internal/domain"
)

type Template string

const (
	TemplateInterest  Template = "interest"
	TemplateReminder  Template = "reminder"
	TemplateWelcome   Template = "welcome"
	TemplateRejection Template = "rejection"
	templateCritical  Template = "critical"
)

var subjects = map[Template]string{
	TemplateInterest:  "Thank you for your interest in Clemson IEEE!",
	TemplateReminder:  "Clemson IEEE: Please Complete Registration Within One Week",
	TemplateWelcome:   "Welcome to IEEE!",
	TemplateRejection: "Clemson IEEE Student Branch: Your application has been rejected due to lack of information",
	templateCritical:  "CRITICAL ERROR in IEEE Registration Bot",
}

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateSet holds the HTML bodies, keyed by template name.
type TemplateSet struct {
	bodies map[Template]string
}

// LoadTemplates reads every template from dir, or from the embedded defaults
// when dir is empty. A directory only needs to contain the files it overrides.
func LoadTemplates(dir string) (*TemplateSet, error) {
	ts := &TemplateSet{bodies: make(map[Template]string, len(subjects))}
	for name := range subjects {
		body, err := readTemplate(dir, name)
		if err != nil {
			return nil, err
		}
		ts.bodies[name] = body
	}
	return ts, nil
}

func readTemplate(dir string, name Template) (string, error) {
	file := string(name) + ".html"
	if dir != "" {
		b, err := fs.ReadFile(os.DirFS(dir), file)
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read template %s: %w", file, err)
		}
	}
	b, err := embeddedTemplates.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("missing template %s: %w", file, err)
	}
	return string(b), nil
}

// Render fills the applicant placeholders of an applicant-facing template.
func (ts *TemplateSet) Render(name Template, applicant domain.Applicant, presidentName string) (subject, body string, err error) {
	raw, ok := ts.bodies[name]
	if !ok || name == templateCritical {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	r := strings.NewReplacer(
		"%FIRST_NAME%", html.EscapeString(applicant.FirstName()),
		"%PRESIDENT_NAME%", html.EscapeString(presidentName),
	)
	return subjects[name], r.Replace(raw), nil
}

// RenderCritical fills the maintainer alert with an escaped message.
func (ts *TemplateSet) RenderCritical(message string) (subject, body string) {
	body = strings.ReplaceAll(ts.bodies[templateCritical], "%%MESSAGE%%", html.EscapeString(message))
	return subjects[templateCritical], body
}
