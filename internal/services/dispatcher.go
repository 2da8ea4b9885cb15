package services

import "log"

// WhatsApp caps message bodies; longer replies go out as ordered chunks.
const maxMessageChars = 4000

// TransportClient sends a text message to a user over the chat transport.
// TwilioService satisfies it.
type TransportClient interface {
	SendWhatsAppMessage(to string, message string) error
}

// Dispatcher delivers composed replies, splitting them to fit the
// transport's length limit.
type Dispatcher struct {
	transport TransportClient
}

// NewDispatcher creates a new response dispatcher
func NewDispatcher(transport TransportClient) *Dispatcher {
	return &Dispatcher{transport: transport}
}

// Deliver sends text to the user in order, one chunk at a time. A failed
// chunk is logged and skipped; the remaining chunks still go out.
func (d *Dispatcher) Deliver(userID, text string) {
	for i, chunk := range SplitMessage(text, maxMessageChars) {
		if err := d.transport.SendWhatsAppMessage(userID, chunk); err != nil {
			log.Printf("❌ Failed to send chunk %d to %s: %v", i+1, userID, err)
		}
	}
}

// SplitMessage cuts text into ordered chunks of at most limit characters,
// counting runes so multi-byte text never splits mid-character.
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
