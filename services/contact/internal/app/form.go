package app

import (
	"fmt"
	"time"

	"contactapi/pkg/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// ContactForm is the raw submission as received from the caller.
type ContactForm struct {
	Name    string
	Email   string
	Phone   string
	Title   string
	Message string
}

// Validate requires every field to be present. Values are otherwise opaque.
func (f ContactForm) Validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"email", f.Email},
		{"phone", f.Phone},
		{"title", f.Title},
		{"message", f.Message},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (f ContactForm) submission() domain.Submission {
	return domain.Submission{
		Name:    f.Name,
		Email:   f.Email,
		Phone:   f.Phone,
		Title:   f.Title,
		Message: f.Message,
	}
}

// FormatNotification renders the message shared by the email and chat sinks.
func FormatNotification(senderName string, at time.Time, f ContactForm) string {
	return fmt.Sprintf(
		"[%s] New contact form submission:\n\n *Time: %s*\n\n- Name: %s\n- Email: %s\n- Phone: %s\n- Title: %s\n- Message:\n\n%s",
		senderName,
		at.UTC().Format(timeLayout),
		f.Name,
		f.Email,
		f.Phone,
		f.Title,
		f.Message,
	)
}
