package mailer

import (
	"fmt"
	"html"
	"time"
)

// Kind enumerates every email the service sends.
type Kind string

const (
	KindWelcome            Kind = "welcome"
	KindVerify             Kind = "verify"
	KindReset              Kind = "reset"
	KindChangeEmail        Kind = "change-email"
	KindTwoFactorAuth      Kind = "two-factor-auth"
	KindTwoFactorEnabled   Kind = "2fa-enabled"
	KindTwoFactorDisabled  Kind = "2fa-disabled"
	KindAccountDeactivated Kind = "account-deactivated"
	KindPasswordUpdated    Kind = "password-updated"
)

// Kinds lists every Kind; each must have a template.
var Kinds = []Kind{
	KindWelcome,
	KindVerify,
	KindReset,
	KindChangeEmail,
	KindTwoFactorAuth,
	KindTwoFactorEnabled,
	KindTwoFactorDisabled,
	KindAccountDeactivated,
	KindPasswordUpdated,
}

type Content struct {
	Subject string
	Body    string
}

// vars are the values substituted into a template.
type vars struct {
	name   string
	otp    string
	app    string
	expiry time.Duration
}

type template struct {
	subject string
	body    func(v vars) string
	needOTP bool
}

func otpBody(intro, color, closing string) func(v vars) string {
	return func(v vars) string {
		return fmt.Sprintf(`<h2>Hello %s,</h2>
<p>%s</p>
<h3 style="color:%s;">%s</h3>
<p>This code will expire in <strong>%s</strong>.</p>
<p>%s</p>`, v.name, fmt.Sprintf(intro, v.app), color, v.otp, formatExpiry(v.expiry), closing)
	}
}

// formatExpiry spells d in whole hours or minutes, e.g. "1 hour", "10 minutes".
func formatExpiry(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func noticeBody(text, closing string) func(v vars) string {
	return func(v vars) string {
		name, app := v.name, v.app
		return fmt.Sprintf(`<h2>Hello %s,</h2>
<p>%s</p>
<p>%s</p>`, name, fmt.Sprintf(text, app), closing)
	}
}

var templates = map[Kind]template{
	KindWelcome: {
		subject: "Welcome to %s!",
		body: func(v vars) string {
			name, app := v.name, v.app
			return fmt.Sprintf(`<h2>Welcome %s!</h2>
<p>Thanks for joining %s. We're excited to have you on board.</p>
<p>Feel free to explore our features and start connecting!</p>`, name, app)
		},
	},
	KindVerify: {
		subject: "Verify your email",
		body:    otpBody("Your confirmation code for <strong>%s</strong> is:", "#2E86C1", "If you did not request this code, you can safely ignore this email."),
		needOTP: true,
	},
	KindReset: {
		subject: "Reset Password Code",
		body:    otpBody("Use the code below to reset the password of your <strong>%s</strong> account:", "#E74C3C", "If you did not request this, please secure your account immediately."),
		needOTP: true,
	},
	KindChangeEmail: {
		subject: "Confirm your email change",
		body:    otpBody("We received a request to change the email on your <strong>%s</strong> account. Confirm it with this code:", "#2E86C1", "If you did not request this email change, please ignore this email."),
		needOTP: true,
	},
	KindTwoFactorAuth: {
		subject: "Your 2FA verification code",
		body:    otpBody("Use the code below to complete your sign-in to <strong>%s</strong>:", "#2E86C1", "If you did not attempt to sign in, please secure your account immediately."),
		needOTP: true,
	},
	KindTwoFactorEnabled: {
		subject: "Two-factor authentication enabled",
		body:    noticeBody("Two-factor authentication has been enabled on your <strong>%s</strong> account.", "If you did not perform this action, please secure your account immediately."),
	},
	KindTwoFactorDisabled: {
		subject: "Two-factor authentication disabled",
		body:    noticeBody("Two-factor authentication has been disabled on your <strong>%s</strong> account.", "If you did not perform this action, please secure your account immediately."),
	},
	KindAccountDeactivated: {
		subject: "Your account has been deactivated",
		body:    noticeBody("Your <strong>%s</strong> account has been deactivated.", "If you did not request this action, please contact support immediately."),
	},
	KindPasswordUpdated: {
		subject: "Your password has been updated",
		body:    noticeBody("Your password on %s has been successfully updated.", "If you did not perform this action, please reset your password immediately."),
	},
}

func init() {
	for _, k := range Kinds {
		if _, ok := templates[k]; !ok {
			panic(fmt.Sprintf("mailer: no template for kind %q", k))
		}
	}
}

// Render builds the subject and HTML body of an email of kind k. otpExpiry is
// the lifetime quoted in emails that carry a code.
func Render(k Kind, userName, otp, appName string, otpExpiry time.Duration) (Content, error) {
	t, ok := templates[k]
	if !ok {
		return Content{}, fmt.Errorf("mailer: unknown email kind %q", k)
	}
	if t.needOTP && otp == "" {
		return Content{}, fmt.Errorf("mailer: kind %q requires a code", k)
	}

	subject := t.subject
	if k == KindWelcome {
		subject = fmt.Sprintf(t.subject, appName)
	}
	return Content{
		Subject: subject,
		Body: t.body(vars{
			name:   html.EscapeString(userName),
			otp:    html.EscapeString(otp),
			app:    appName,
			expiry: otpExpiry,
		}),
	}, nil
}
