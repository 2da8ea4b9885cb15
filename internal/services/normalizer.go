package services

import (
	"context"
	"log"
)

// Fixed placeholder when OCR finds nothing readable in an image.
const unreadableImageText = "[Image containing no readable text]"

// MediaClient downloads inbound media referenced by a webhook payload.
type MediaClient interface {
	// Download fetches the media bytes and returns them with the MIME type.
	Download(ctx context.Context, ref string) (data []byte, mime string, err error)
}

// VisionClient extracts text from images (OCR or vision model).
type VisionClient interface {
	ImageToText(ctx context.Context, image []byte, mime string) (string, error)
}

// Transcript is a cleaned voice transcription in both the detected language
// and English.
type Transcript struct {
	English string `json:"english"`
	Native  string `json:"native"`
}

// Transcriber converts speech to text and cleans the raw transcript.
type Transcriber interface {
	SpeechToText(ctx context.Context, audio []byte) (text string, lang string, err error)
	CleanTranscript(ctx context.Context, text, lang string) (Transcript, error)
}

// DocumentExtractor pulls text out of uploaded documents. Page and row caps
// are the extractor's concern; when exceeded it returns a notice string
// instead of an error.
type DocumentExtractor interface {
	DocumentToText(ctx context.Context, data []byte, filename string) (string, error)
}

// Normalizer converts a raw buffered item into plain text through the
// media collaborators.
type Normalizer struct {
	media     MediaClient
	vision    VisionClient
	speech    Transcriber
	documents DocumentExtractor
}

// NewNormalizer creates a new multi-modal normalizer
func NewNormalizer(media MediaClient, vision VisionClient, speech Transcriber, documents DocumentExtractor) *Normalizer {
	return &Normalizer{
		media:     media,
		vision:    vision,
		speech:    speech,
		documents: documents,
	}
}

// Normalize extracts plain text from a single item. A failing collaborator
// contributes an empty string instead of aborting the batch: one bad
// attachment must not block the rest.
func (n *Normalizer) Normalize(ctx context.Context, item Item) string {
	switch item.Type {
	case ItemText:
		return item.Content

	case ItemImage:
		data, mime, err := n.media.Download(ctx, item.Content)
		if err != nil {
			log.Printf("⚠️ item processing failed (image): %v", err)
			return ""
		}
		text, err := n.vision.ImageToText(ctx, data, mime)
		if err != nil {
			log.Printf("⚠️ item processing failed (image): %v", err)
			return ""
		}
		if text == "" {
			return unreadableImageText
		}
		return text

	case ItemAudio:
		data, _, err := n.media.Download(ctx, item.Content)
		if err != nil {
			log.Printf("⚠️ item processing failed (audio): %v", err)
			return ""
		}
		raw, lang, err := n.speech.SpeechToText(ctx, data)
		if err != nil {
			log.Printf("⚠️ item processing failed (audio): %v", err)
			return ""
		}
		cleaned, err := n.speech.CleanTranscript(ctx, raw, lang)
		if err != nil {
			log.Printf("⚠️ item processing failed (audio): %v", err)
			return ""
		}
		return cleaned.English

	case ItemDocument:
		data, _, err := n.media.Download(ctx, item.Content)
		if err != nil {
			log.Printf("⚠️ item processing failed (document): %v", err)
			return ""
		}
		filename := item.Extra
		if filename == "" {
			filename = "file.bin"
		}
		text, err := n.documents.DocumentToText(ctx, data, filename)
		if err != nil {
			log.Printf("⚠️ item processing failed (document): %v", err)
			return ""
		}
		return text
	}

	log.Printf("⚠️ unknown item type %q, skipping", item.Type)
	return ""
}
