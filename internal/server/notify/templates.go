package notify

import (
	"bytes"
	"html/template"
)

var subjects = map[Kind]string{
	KindVerification:  "Your AI-Wallpaper verification code",
	KindPasswordReset: "Your AI-Wallpaper password reset code",
}

var bodies = map[Kind]*template.Template{
	KindVerification: template.Must(template.New("verification").Parse(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2 style="color: #4CAF50;">Welcome to AI-Wallpaper!</h2>
    <p>Hello,</p>
    <p>Use the code below to verify your email address:</p>
    <p style="text-align: center; font-size: 28px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
    <p>This code will expire in {{.Minutes}} minutes.</p>
    <p>If you did not sign up, you can safely ignore this email.</p>
    <br>
    <p>Thanks,<br>AI-Wallpaper Team</p>
  </body>
</html>`)),
	KindPasswordReset: template.Must(template.New("password_reset").Parse(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2 style="color: #f44336;">Password Reset Request</h2>
    <p>Hello,</p>
    <p>We received a request to reset your password. Use the code below to set a new one:</p>
    <p style="text-align: center; font-size: 28px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
    <p>This code will expire in {{.Minutes}} minutes.</p>
    <p>If you did not request this, you can safely ignore this email.</p>
    <br>
    <p>Thanks,<br>AI-Wallpaper Team</p>
  </body>
</html>`)),
}

func render(m Message, minutes int) (string, string, error) {
	var buf bytes.Buffer
	err := bodies[m.Kind].Execute(&buf, struct {
		Code    int
		Minutes int
	}{Code: m.Code, Minutes: minutes})
	if err != nil {
		return "", "", err
	}
	return subjects[m.Kind], buf.String(), nil
}
