package mailer

import (
	"bytes"
	"html/template"
	"time"

	"github.com/pkg/errors"
)

const dateLayout = "02 Jan 2006"

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(dateLayout) },
}

var templates = map[string]*template.Template{
	TemplateBorrowCreated: template.Must(template.New(TemplateBorrowCreated).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p>You have borrowed <strong>{{.BookTitle}}</strong> on {{date .BorrowDate}}. Please return it by {{date .DueDate}}.</p>
<p>Your receipt is attached.</p>`)),
	TemplateReservationApproved: template.Must(template.New(TemplateReservationApproved).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p>A copy of <strong>{{.BookTitle}}</strong> is now set aside for you. Visit the library to collect it.</p>`)),
	TemplatePrebookingCreated: template.Must(template.New(TemplatePrebookingCreated).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p>Your pre-booking of <strong>{{.BookTitle}}</strong> is confirmed. Please collect it before {{date .PickupDeadline}}.</p>`)),
	TemplatePrebookingCancelled: template.Must(template.New(TemplatePrebookingCancelled).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p>Your pre-booking of <strong>{{.BookTitle}}</strong> has been cancelled.</p>`)),
	TemplatePrebookingApproved: template.Must(template.New(TemplatePrebookingApproved).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p>You have collected <strong>{{.BookTitle}}</strong>. Please return it by {{date .DueDate}}.</p>
<p>Your receipt is attached.</p>`)),
	TemplateOverdueReminder: template.Must(template.New(TemplateOverdueReminder).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p><strong>{{.BookTitle}}</strong> was due on {{date .DueDate}}. Fines accrue for every day it is late.</p>`)),
	TemplateReservationReminder: template.Must(template.New(TemplateReservationReminder).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p><strong>{{.BookTitle}}</strong> is still waiting for you at the library.</p>`)),
	TemplatePasswordReset: template.Must(template.New(TemplatePasswordReset).Funcs(funcs).Parse(
		`<p>Dear {{.UserName}},</p>
<p>Your password reset code is <strong>{{.Code}}</strong>. It expires in {{.ExpiresInMinutes}} minutes.</p>`)),
}

const (
	TemplateBorrowCreated       = "borrow_created"
	TemplateReservationApproved = "reservation_approved"
	TemplatePrebookingCreated   = "prebooking_created"
	TemplatePrebookingCancelled = "prebooking_cancelled"
	TemplatePrebookingApproved  = "prebooking_approved"
	TemplateOverdueReminder     = "overdue_reminder"
	TemplateReservationReminder = "reservation_reminder"
	TemplatePasswordReset       = "password_reset"
)

var subjects = map[string]string{
	TemplateBorrowCreated:       "Book borrowed",
	TemplateReservationApproved: "Your reserved book is ready",
	TemplatePrebookingCreated:   "Pre-booking confirmed",
	TemplatePrebookingCancelled: "Pre-booking cancelled",
	TemplatePrebookingApproved:  "Pre-booked book collected",
	TemplateOverdueReminder:     "Overdue book reminder",
	TemplateReservationReminder: "Reserved book reminder",
	TemplatePasswordReset:       "Password reset code",
}

// TemplateData is the data every template may reference.
type TemplateData struct {
	UserName         string
	BookTitle        string
	BorrowDate       time.Time
	DueDate          time.Time
	PickupDeadline   time.Time
	Code             string
	ExpiresInMinutes int
}

// Render builds a message for the named template.
func Render(name, to string, data TemplateData) (Message, error) {
	tmpl, ok := templates[name]
	if !ok {
		return Message{}, errors.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, errors.WithStack(err)
	}
	return Message{
		To:       to,
		Subject:  subjects[name],
		HTMLBody: buf.String(),
	}, nil
}
