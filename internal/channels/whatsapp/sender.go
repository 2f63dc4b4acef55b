package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const addressPrefix = "whatsapp:"

var tracer = otel.Tracer("pharmacy.internal.channels.whatsapp")

// Sender delivers an outbound WhatsApp message and returns the provider id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends WhatsApp messages through Twilio's Messages API.
type TwilioSender struct {
	api  messageCreator
	from string
}

// NewTwilioSender builds a sender for the given account and WhatsApp-enabled number.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: Address(from)}
}

// Send posts body to the WhatsApp address of to.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("whatsapp: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("whatsapp: body required")
	}
	_, span := tracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("whatsapp.to", Address(to)))

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(Address(to))
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("whatsapp: create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// Address prefixes an E.164 number with the whatsapp: scheme once.
func Address(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, addressPrefix) {
		return number
	}
	return addressPrefix + number
}

// Number strips the whatsapp: scheme from a Twilio address.
func Number(address string) string {
	return strings.TrimPrefix(strings.TrimSpace(address), addressPrefix)
}
