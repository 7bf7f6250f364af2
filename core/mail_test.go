package core

import (
	"fmt"
	"net/mail"
	"strings"
	"testing"
)

// captureLogger records Error calls so tests can assert nothing went wrong
// during template parsing.
type captureLogger struct{ errs []string }

func (l *captureLogger) Enable(bool)                        {}
func (l *captureLogger) Debug(string, ...interface{})       {}
func (l *captureLogger) Info(string, ...interface{})        {}
func (l *captureLogger) Warn(string, ...interface{})        {}
func (l *captureLogger) Fatal(string, ...interface{})       {}
func (l *captureLogger) Error(msg string, _ ...interface{}) { l.errs = append(l.errs, msg) }

func TestParseEmailTemplates(t *testing.T) {
	conf := &Config{TestMode: true, AppName: "Darasa", FrontendBaseURL: "https://darasa.test"}
	logger := new(captureLogger)

	ParseEmailTemplates(conf, logger)
	if len(logger.errs) > 0 {
		t.Fatalf("failed! parse errors: %v", logger.errs)
	}

	wantNames := []string{"content-published", "password-reset", "submission-graded", "submission-received"}
	for _, name := range wantNames {
		entry, ok := templates[name]
		if !ok {
			t.Errorf("failed! template %q not cached", name)
			continue
		}
		if _, ok = entry[".txt"]; !ok {
			t.Errorf("failed! template %q has no .txt variant", name)
		}
	}
}

func TestEmailMessage_Render_passwordReset(t *testing.T) {
	conf := &Config{TestMode: true, AppName: "Darasa", FrontendBaseURL: "https://darasa.test"}
	logger := new(captureLogger)
	ParseEmailTemplates(conf, logger)

	msg := &EmailMessage{
		To:           []mail.Address{{Name: "Hero", Address: "hero@test.cd"}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{
			Name:  "Hero",
			UID:   "MQ",
			Token: "abc123-tok",
		},
	}
	if err := msg.Render(conf); err != nil {
		t.Fatalf("Render() failed, %v", err)
	}
	if !msg.HasContent() {
		t.Fatal("failed! rendered message has no content")
	}

	wants := []string{
		"Hi Hero,",
		fmt.Sprintf("%s/password-reset/MQ/abc123-tok", conf.FrontendBaseURL),
		conf.FrontendBaseURL,
	}
	for _, want := range wants {
		if !strings.Contains(msg.TextContent, want) {
			t.Errorf("failed! body missing %q:\n%s", want, msg.TextContent)
		}
	}
}
