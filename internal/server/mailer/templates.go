package mailer

import (
	"bytes"
	"html/template"
)

var codeTemplate = template.Must(template.New("code").Parse(
	`<p>{{.Lead}} <strong>{{.Code}}</strong></p><p>It expires in {{.Minutes}} minutes.</p>`))

type Mail struct {
	Subject string
	HTML    string
}

func render(subject, lead, code string, minutes int) Mail {
	var b bytes.Buffer
	_ = codeTemplate.Execute(&b, struct {
		Lead    string
		Code    string
		Minutes int
	}{lead, code, minutes})
	return Mail{Subject: subject, HTML: b.String()}
}

func VerificationMail(code string, minutes int) Mail {
	return render("Verification Email", "Your verification code is:", code, minutes)
}

func ResendMail(code string, minutes int) Mail {
	return render("Resend Verification Email", "Your new verification code is:", code, minutes)
}

func PasswordResetMail(code string, minutes int) Mail {
	return render("Password Reset", "Your password reset code is:", code, minutes)
}
