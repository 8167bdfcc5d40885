package notifications

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/coraldesk/coraldesk-backend/pkg/config"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/mailer"
)

// Dispatcher turns a decoded job payload into outbound messages. It is
// channel-agnostic beyond choosing email vs WhatsApp per recipient; transport
// failures propagate so the queue's attempt bookkeeping can act on them.
type Dispatcher struct {
	transport mailer.Transport
	cfg       config.MailerConfig
	logg      *logger.Logger
}

// NewDispatcher wires the dispatcher dependencies.
func NewDispatcher(transport mailer.Transport, cfg config.MailerConfig, logg *logger.Logger) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("mail transport required")
	}
	return &Dispatcher{transport: transport, cfg: cfg, logg: logg}, nil
}

var (
	orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`
<h2>Thanks for your order, {{.ClientName}}!</h2>
<p>Order #{{.OrderID}} has been received.</p>
<table>
{{range .Items}}<tr><td>{{.CoralName}}</td><td>x{{.Quantity}}</td><td>${{.Subtotal}}</td></tr>
{{end}}</table>
<p>Total: <strong>${{.TotalAmount}}</strong></p>
<p>We'll let you know as soon as your order progresses.</p>`))

	statusProgressionTmpl = template.Must(template.New("status_progression").Parse(`
<h2>Order #{{.OrderID}} update</h2>
<p>Hi {{.ClientName}}, your order has progressed: <strong>{{.Progression}}</strong>.</p>`))

	bulletinTmpl = template.Must(template.New("bulletin").Parse(`
<h2>{{.Title}}</h2>
<div>{{.Body}}</div>`))

	lowStockTmpl = template.Must(template.New("low_stock").Parse(`
<h2>Low stock alert</h2>
<p>{{.CoralName}} is down to {{.Quantity}} (minimum {{.MinimumStock}}).</p>`))

	registrationTmpl = template.Must(template.New("client_registration").Parse(`
<h2>Welcome to CoralDesk, {{.ClientName}}!</h2>
<p>Your account is ready. Browse the current stock list and place your first order any time.</p>`))
)

// Dispatch renders and sends a single, non-batched payload. The switch is
// exhaustive over every notification kind; an unhandled payload shape is a
// permanent error.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) error {
	switch p := payload.(type) {
	case OrderConfirmationPayload:
		return d.sendOrderConfirmation(ctx, p)
	case StatusUpdatePayload:
		return d.DispatchStatusProgression(ctx, p, []string{p.Status})
	case BulletinPayload:
		return d.sendBulletin(ctx, p)
	case LowStockPayload:
		return d.sendLowStock(ctx, p)
	case ClientRegistrationPayload:
		return d.sendRegistration(ctx, p)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no dispatch rule for payload %T", payload))
	}
}

// DispatchStatusProgression sends one collapsed status summary for an order.
// statuses must be in first-seen creation order, already deduplicated.
func (d *Dispatcher) DispatchStatusProgression(ctx context.Context, payload StatusUpdatePayload, statuses []string) error {
	if len(statuses) == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "status progression requires at least one status")
	}

	progression := strings.Join(statuses, " → ")
	html, err := render(statusProgressionTmpl, map[string]any{
		"OrderID":     payload.OrderID,
		"ClientName":  payload.ClientName,
		"Progression": progression,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Order #%d is now %s", payload.OrderID, statuses[len(statuses)-1])
	if err := d.transport.SendEmail(ctx, mailer.Email{
		To:      payload.ClientEmail,
		Subject: subject,
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("send status update email: %w", err)
	}

	if payload.ClientPhone != nil && *payload.ClientPhone != "" {
		text := fmt.Sprintf("CoralDesk: order #%d progressed (%s).", payload.OrderID, progression)
		if err := d.transport.SendWhatsApp(ctx, mailer.TextMessage{To: *payload.ClientPhone, Body: text}); err != nil {
			return fmt.Errorf("send status update whatsapp: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) sendOrderConfirmation(ctx context.Context, p OrderConfirmationPayload) error {
	html, err := render(orderConfirmationTmpl, p)
	if err != nil {
		return err
	}
	if err := d.transport.SendEmail(ctx, mailer.Email{
		To:      p.ClientEmail,
		Subject: fmt.Sprintf("Order #%d confirmed", p.OrderID),
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("send order confirmation email: %w", err)
	}

	if p.ClientPhone != nil && *p.ClientPhone != "" {
		text := fmt.Sprintf("CoralDesk: order #%d received, total $%s. Thank you!", p.OrderID, p.TotalAmount)
		if err := d.transport.SendWhatsApp(ctx, mailer.TextMessage{To: *p.ClientPhone, Body: text}); err != nil {
			return fmt.Errorf("send order confirmation whatsapp: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) sendBulletin(ctx context.Context, p BulletinPayload) error {
	html, err := render(bulletinTmpl, p)
	if err != nil {
		return err
	}
	var failed []string
	for _, recipient := range p.Recipients {
		if err := d.transport.SendEmail(ctx, mailer.Email{
			To:      recipient,
			Subject: p.Title,
			HTML:    html,
		}); err != nil {
			failed = append(failed, recipient)
			if d.logg != nil {
				logCtx := d.logg.WithField(ctx, "recipient", recipient)
				d.logg.Warn(logCtx, "bulletin email failed")
			}
		}
	}
	if len(failed) == len(p.Recipients) && len(p.Recipients) > 0 {
		return fmt.Errorf("bulletin delivery failed for all %d recipients", len(p.Recipients))
	}
	return nil
}

func (d *Dispatcher) sendLowStock(ctx context.Context, p LowStockPayload) error {
	html, err := render(lowStockTmpl, p)
	if err != nil {
		return err
	}
	if err := d.transport.SendEmail(ctx, mailer.Email{
		To:      d.cfg.StaffAddress,
		Subject: fmt.Sprintf("Low stock: %s", p.CoralName),
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("send low stock email: %w", err)
	}
	return nil
}

func (d *Dispatcher) sendRegistration(ctx context.Context, p ClientRegistrationPayload) error {
	html, err := render(registrationTmpl, p)
	if err != nil {
		return err
	}
	if err := d.transport.SendEmail(ctx, mailer.Email{
		To:      p.ClientEmail,
		Subject: "Welcome to CoralDesk",
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("send registration email: %w", err)
	}
	return nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
