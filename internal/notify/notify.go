// Package notify delivers order events to customers.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopsim/internal/domain/order"
)

var (
	_ order.Notifier = (*SESNotifier)(nil)
	_ order.Notifier = LogNotifier{}
)

// SESAPI is the subset of the SES client used to send mail.
type SESAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier e-mails the order owner through Amazon SES.
type SESNotifier struct {
	client SESAPI
	sender string
}

// NewSESNotifier creates an SESNotifier sending from sender.
func NewSESNotifier(client SESAPI, sender string) (*SESNotifier, error) {
	if sender == "" {
		return nil, errors.New("sender address is required")
	}
	return &SESNotifier{client: client, sender: sender}, nil
}

// NewSESClient builds an SES client from the default AWS credential chain.
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return ses.NewFromConfig(cfg), nil
}

// Notify sends the e-mail for e. Orders without a customer address are
// skipped.
func (n *SESNotifier) Notify(ctx context.Context, e order.Event) error {
	o := e.Order
	if o == nil || o.Customer == nil || o.Customer.Email == "" {
		zctx.From(ctx).Debug("Skipping notification without recipient")
		return nil
	}

	msg := render(e)
	out, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{o.Customer.Email},
		},
		Message: &types.Message{
			Subject: content(msg.subject),
			Body: &types.Body{
				Html: content(msg.html),
				Text: content(msg.text),
			},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "send %s email for order %d", e.Kind, o.ID)
	}

	zctx.From(ctx).Info("Order email sent",
		zap.String("kind", string(e.Kind)),
		zap.Int64("order_id", o.ID),
		zap.Stringp("message_id", out.MessageId),
	)
	return nil
}

func content(s string) *types.Content {
	return &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(s)}
}

// LogNotifier records order events in the request logger instead of sending
// them anywhere.
type LogNotifier struct{}

// Notify logs e.
func (LogNotifier) Notify(ctx context.Context, e order.Event) error {
	if e.Order == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.Int64("order_id", e.Order.ID),
		zap.String("total", e.Order.TotalAmount.StringFixed(2)),
	}
	if c := e.Order.Customer; c != nil {
		fields = append(fields, zap.String("email", c.Email))
	}
	zctx.From(ctx).Info("Order notification", fields...)
	return nil
}

type message struct {
	subject string
	text    string
	html    string
}

func render(e order.Event) message {
	o := e.Order
	name := o.Customer.FirstName
	if name == "" {
		name = o.Customer.Email
	}
	total := o.TotalAmount.StringFixed(2)

	var subject, line string
	switch e.Kind {
	case order.EventCancelled:
		subject = fmt.Sprintf("Order #%d cancelled", o.ID)
		line = fmt.Sprintf("Your order #%d has been cancelled and any payment will be released.", o.ID)
	default:
		subject = fmt.Sprintf("Order #%d confirmation", o.ID)
		line = fmt.Sprintf("Thank you for your order! Your order #%d has been placed.", o.ID)
	}

	text := fmt.Sprintf("Dear %s,\n\n%s\n\nItems:\n", name, line)
	rows := ""
	for _, it := range o.Items {
		text += fmt.Sprintf("  %d x %s @ %s\n", it.Quantity, it.ProductName, it.UnitPrice.StringFixed(2))
		rows += fmt.Sprintf("<li>%d &times; %s @ %s</li>", it.Quantity, html.EscapeString(it.ProductName), it.UnitPrice.StringFixed(2))
	}
	text += fmt.Sprintf("\nTotal: %s\n", total)

	body := fmt.Sprintf(
		"<html><body><p>Dear %s,</p><p>%s</p><ul>%s</ul><p><strong>Total: %s</strong></p></body></html>",
		html.EscapeString(name), html.EscapeString(line), rows, total,
	)
	return message{subject: subject, text: text, html: body}
}
