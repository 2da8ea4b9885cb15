package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// TwilioMediaClient downloads inbound WhatsApp media from Twilio's media
// URLs using account credentials.
type TwilioMediaClient struct {
	client     *http.Client
	accountSID string
	authToken  string
}

// NewTwilioMediaClient creates a media client from the Twilio credentials
// in the environment.
func NewTwilioMediaClient() (*TwilioMediaClient, error) {
	accountSID := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	return &TwilioMediaClient{
		client:     &http.Client{Timeout: 15 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
	}, nil
}

// Download fetches media bytes from a Twilio media URL. Twilio redirects to
// a signed CDN URL; basic auth covers the first hop.
func (m *TwilioMediaClient) Download(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", NewTerminalFault("download_media", err)
	}
	req.SetBasicAuth(m.accountSID, m.authToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", NewTransientFault("download_media", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", NewTransientFault("download_media", fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", NewTransientFault("download_media", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// MediaAIClient is the media-understanding sidecar: OCR/vision, speech to
// text, transcript cleanup and document extraction behind one JSON API.
// It implements VisionClient, Transcriber and DocumentExtractor.
type MediaAIClient struct {
	client  *http.Client
	baseURL string
}

// NewMediaAIClient creates a client from MEDIA_AI_URL.
func NewMediaAIClient() (*MediaAIClient, error) {
	baseURL := os.Getenv("MEDIA_AI_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("missing MEDIA_AI_URL in environment variables")
	}

	return &MediaAIClient{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (m *MediaAIClient) ImageToText(ctx context.Context, image []byte, mime string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := m.postFile(ctx, "/ocr", "image", "image.bin", mime, image, &result); err != nil {
		return "", NewTransientFault("image_to_text", err)
	}
	return result.Text, nil
}

func (m *MediaAIClient) SpeechToText(ctx context.Context, audio []byte) (string, string, error) {
	var result struct {
		Text string `json:"text"`
		Lang string `json:"lang"`
	}
	if err := m.postFile(ctx, "/transcribe", "audio", "audio.ogg", "audio/ogg", audio, &result); err != nil {
		return "", "", NewTransientFault("speech_to_text", err)
	}
	return result.Text, result.Lang, nil
}

func (m *MediaAIClient) CleanTranscript(ctx context.Context, text, lang string) (Transcript, error) {
	payload, err := json.Marshal(map[string]string{"text": text, "lang": lang})
	if err != nil {
		return Transcript{}, NewTerminalFault("clean_transcript", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/clean-transcript", bytes.NewReader(payload))
	if err != nil {
		return Transcript{}, NewTerminalFault("clean_transcript", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Transcript{}, NewTransientFault("clean_transcript", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transcript{}, NewTransientFault("clean_transcript", fmt.Errorf("status %d", resp.StatusCode))
	}

	var cleaned Transcript
	if err := json.NewDecoder(resp.Body).Decode(&cleaned); err != nil {
		return Transcript{}, NewTransientFault("clean_transcript", err)
	}
	return cleaned, nil
}

func (m *MediaAIClient) DocumentToText(ctx context.Context, data []byte, filename string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := m.postFile(ctx, "/extract-document", "document", filename, "application/octet-stream", data, &result); err != nil {
		return "", NewTransientFault("document_to_text", err)
	}
	return result.Text, nil
}

func (m *MediaAIClient) postFile(ctx context.Context, path, field, filename, mime string, data []byte, out interface{}) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.WriteField("mime", mime); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
