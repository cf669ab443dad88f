package notify

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopsim/internal/domain/order"
)

// --- Mock implementations ---

type mockSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:          42,
		TotalAmount: decimal.RequireFromString("19.98"),
		Items: []order.Item{
			{ProductName: "Fish & Chips", Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
		},
		Customer: &order.Customer{FirstName: "Ada", Email: "ada@example.com"},
	}
}

// --- Tests ---

func TestSESNotifier_Placed(t *testing.T) {
	client := &mockSES{}
	n, err := NewSESNotifier(client, "shop@example.com")
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), order.Event{Kind: order.EventPlaced, Order: sampleOrder()}))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "shop@example.com", aws.ToString(in.Source))
	assert.Equal(t, []string{"ada@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Order #42 confirmation", aws.ToString(in.Message.Subject.Data))
	assert.Contains(t, aws.ToString(in.Message.Body.Text.Data), "Total: 19.98")
	assert.Contains(t, aws.ToString(in.Message.Body.Text.Data), "2 x Fish & Chips @ 9.99")
	assert.Contains(t, aws.ToString(in.Message.Body.Html.Data), "Fish &amp; Chips")
}

func TestSESNotifier_Cancelled(t *testing.T) {
	client := &mockSES{}
	n, err := NewSESNotifier(client, "shop@example.com")
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), order.Event{Kind: order.EventCancelled, Order: sampleOrder()}))
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "Order #42 cancelled", aws.ToString(client.inputs[0].Message.Subject.Data))
}

func TestSESNotifier_SkipsMissingRecipient(t *testing.T) {
	client := &mockSES{}
	n, err := NewSESNotifier(client, "shop@example.com")
	require.NoError(t, err)

	o := sampleOrder()
	o.Customer = nil
	require.NoError(t, n.Notify(context.Background(), order.Event{Kind: order.EventPlaced, Order: o}))
	assert.Empty(t, client.inputs)
}

func TestSESNotifier_SendError(t *testing.T) {
	client := &mockSES{err: errors.New("throttled")}
	n, err := NewSESNotifier(client, "shop@example.com")
	require.NoError(t, err)

	err = n.Notify(context.Background(), order.Event{Kind: order.EventPlaced, Order: sampleOrder()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order 42")
	assert.Contains(t, err.Error(), "throttled")
}

func TestNewSESNotifier_RequiresSender(t *testing.T) {
	_, err := NewSESNotifier(&mockSES{}, "")
	require.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	require.NoError(t, LogNotifier{}.Notify(context.Background(), order.Event{Kind: order.EventPlaced, Order: sampleOrder()}))
	require.NoError(t, LogNotifier{}.Notify(context.Background(), order.Event{Kind: order.EventPlaced}))
}
