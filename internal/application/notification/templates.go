package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/healthvault-api/internal/domain"
)

const productName = "HealthVault"

type rendered struct {
	Subject string
	HTML    string
	Text    string
}

var (
	otpHTML = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>{{.Product}}</h2>
<p>{{.Intro}}</p>
<p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
<p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
</body></html>`))

	welcomeHTML = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2933">
<h2>Welcome to {{.Product}}{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Your account is ready. You can now upload reports, track vitals and share access with the people you trust.</p>
</body></html>`))
)

func purposeIntro(p domain.OtpPurpose) (subject, intro string) {
	switch p {
	case domain.PurposePasswordReset:
		return "Reset your " + productName + " password", "Use this code to reset your password:"
	case domain.PurposeLogin:
		return "Your " + productName + " sign-in code", "Use this code to sign in:"
	default:
		return "Verify your " + productName + " account", "Use this code to verify your contact details:"
	}
}

func renderOtp(code string, purpose domain.OtpPurpose, expiresIn time.Duration) (rendered, error) {
	subject, intro := purposeIntro(purpose)
	minutes := int(expiresIn.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	var buf bytes.Buffer
	err := otpHTML.Execute(&buf, map[string]interface{}{
		"Product": productName,
		"Intro":   intro,
		"Code":    code,
		"Minutes": minutes,
	})
	if err != nil {
		return rendered{}, fmt.Errorf("render otp email: %w", err)
	}
	return rendered{
		Subject: subject,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s code: %s. It expires in %d minutes.", productName, code, minutes),
	}, nil
}

func renderWelcome(name string) (rendered, error) {
	var buf bytes.Buffer
	if err := welcomeHTML.Execute(&buf, map[string]string{"Product": productName, "Name": name}); err != nil {
		return rendered{}, fmt.Errorf("render welcome email: %w", err)
	}
	text := "Welcome to " + productName + "! Your account is ready."
	if name != "" {
		text = "Welcome to " + productName + ", " + name + "! Your account is ready."
	}
	return rendered{Subject: "Welcome to " + productName, HTML: buf.String(), Text: text}, nil
}
