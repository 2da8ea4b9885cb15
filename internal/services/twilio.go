package services

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	twilioServiceInstance *TwilioService
	twilioServiceOnce     sync.Once
)

// SetTwilioService sets the global twilio service instance
func SetTwilioService(ts *TwilioService) {
	twilioServiceInstance = ts
}

// GetTwilioService returns the global twilio service instance
func GetTwilioService() *TwilioService {
	twilioServiceOnce.Do(func() {
		if twilioServiceInstance == nil {
			log.Println("Warning: TwilioService not initialized before use")
		}
	})
	return twilioServiceInstance
}

type TwilioService struct {
	client *twilio.RestClient
	from   string // Your Twilio WhatsApp number, format "whatsapp:+14155238886"
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService() (*TwilioService, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_WHATSAPP_FROM")

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioService{
		client: client,
		from:   from,
	}, nil
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio
func (t *TwilioService) SendWhatsAppMessage(to string, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(fmt.Sprintf("whatsapp:%s", to))
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp message: %v", err)
		return err
	}

	log.Printf("✅ WhatsApp message sent! SID: %s", *resp.Sid)
	return nil
}
