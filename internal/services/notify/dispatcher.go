package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/mail"

	"github.com/pocketbase/pocketbase/tools/mailer"
	pubnub "github.com/pubnub/go"
	qrcode "github.com/skip2/go-qrcode"

	"expo-booking/monitoring"
)

// Publisher pushes realtime messages to subscribed browsers.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(_ context.Context, channel string, message any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// QRPayload is the string encoded into a booking's entry QR code.
func QRPayload(bookingID string) string {
	return "BOOKING:" + bookingID
}

// OrderChannel is the realtime channel the checkout page listens on.
func OrderChannel(gatewayOrderID string) string {
	return "order-" + gatewayOrderID
}

var confirmationTmpl = template.Must(template.New("confirmation").Option("missingkey=zero").Parse(`<p>Hi {{.Name}},</p>
{{if eq .Kind "booking"}}<p>Your booking <strong>{{.RecordID}}</strong> is confirmed.{{with .Details.event_name}} See you at {{.}}.{{end}}</p>
<p>Quantity: {{.Details.quantity}} &middot; Amount paid: {{.Details.total_amount}}</p>
<p>Show the attached QR code at the entrance.</p>
{{else}}<p>Your stall reservation <strong>{{.RecordID}}</strong> for {{.Details.company_name}} is confirmed.</p>
{{with .Details.stall_no}}<p>Stall: {{.}}</p>{{end}}<p>Amount paid: {{.Details.amount}}</p>
{{end}}`))

type Dispatcher struct {
	mailer    mailer.Mailer
	publisher Publisher
	from      mail.Address
}

func NewDispatcher(m mailer.Mailer, p Publisher, from mail.Address) *Dispatcher {
	return &Dispatcher{mailer: m, publisher: p, from: from}
}

// Deliver sends the confirmation email and the realtime event. Only the
// email result decides whether the job is retried.
func (d *Dispatcher) Deliver(ctx context.Context, job *Job) error {
	msg, err := d.buildMessage(job)
	if err != nil {
		return err
	}

	if err := d.mailer.Send(msg); err != nil {
		monitoring.TrackNotification("email", "error")
		return fmt.Errorf("notify.Deliver: mailer.Send: %w", err)
	}
	monitoring.TrackNotification("email", "ok")

	if d.publisher != nil && job.GatewayOrderID != "" {
		err := d.publisher.Publish(ctx, OrderChannel(job.GatewayOrderID), map[string]any{
			"type":      "payment_success",
			"kind":      job.Kind,
			"record_id": job.RecordID,
		})
		if err != nil {
			monitoring.TrackNotification("realtime", "error")
			slog.Warn("d.publisher.Publish()", "job", job.ID, "error", err)
		} else {
			monitoring.TrackNotification("realtime", "ok")
		}
	}
	return nil
}

func (d *Dispatcher) buildMessage(job *Job) (*mailer.Message, error) {
	var body bytes.Buffer
	if err := confirmationTmpl.Execute(&body, job); err != nil {
		return nil, fmt.Errorf("notify.buildMessage: template.Execute: %w", err)
	}

	msg := &mailer.Message{
		From: d.from,
		To:   []mail.Address{{Name: job.Name, Address: job.Email}},
		HTML: body.String(),
	}

	switch job.Kind {
	case KindBooking:
		msg.Subject = "Your booking is confirmed"
		png, err := qrcode.Encode(QRPayload(job.RecordID), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("notify.buildMessage: qrcode.Encode: %w", err)
		}
		msg.Attachments = map[string]io.Reader{
			"booking-" + job.RecordID + ".png": bytes.NewReader(png),
		}
	default:
		msg.Subject = "Your stall reservation is confirmed"
	}
	return msg, nil
}
