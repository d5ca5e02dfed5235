package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/email"
)

// Confirmation is everything the booking confirmation email shows.
type Confirmation struct {
	AppointmentID uuid.UUID
	PatientEmail  string
	PatientName   string
	ClinicName    string
	BranchName    string
	Start         time.Time
	End           time.Time
	ServiceNames  []string
	Notes         string
}

type Notifier interface {
	SendAppointmentConfirmation(ctx context.Context, c Confirmation) error
}

const confirmationSubject = "Your appointment is booked"

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello {{.PatientName}},</p>
<p>Your appointment at <strong>{{.ClinicName}}</strong> ({{.BranchName}}) has been received.</p>
<ul>
<li>Start: {{.Start}}</li>
<li>End: {{.End}}</li>
<li>Services: {{.Services}}</li>
{{- if .Notes}}
<li>Notes: {{.Notes}}</li>
{{- end}}
</ul>
<p>The clinic will confirm the appointment shortly.</p>
</body>
</html>
`))

type emailNotifier struct {
	sender email.Service
}

func NewEmailNotifier(sender email.Service) Notifier {
	return &emailNotifier{sender: sender}
}

func (n *emailNotifier) SendAppointmentConfirmation(ctx context.Context, c Confirmation) error {
	body, err := RenderConfirmation(c)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, email.Message{
		To:      c.PatientEmail,
		Subject: confirmationSubject,
		HTML:    body,
	})
}

// RenderConfirmation produces the HTML body. Values are escaped by
// html/template.
func RenderConfirmation(c Confirmation) (string, error) {
	const layout = "Mon 02 Jan 2006 15:04 MST"
	data := struct {
		PatientName string
		ClinicName  string
		BranchName  string
		Start       string
		End         string
		Services    string
		Notes       string
	}{
		PatientName: c.PatientName,
		ClinicName:  c.ClinicName,
		BranchName:  c.BranchName,
		Start:       c.Start.Format(layout),
		End:         c.End.Format(layout),
		Services:    strings.Join(c.ServiceNames, ", "),
		Notes:       c.Notes,
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render confirmation: %w", err)
	}
	return buf.String(), nil
}
