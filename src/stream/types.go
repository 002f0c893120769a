package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/elee1766/orbital/src/aisdk"
)

// streamChunk is one decoded event of the completion stream.
type streamChunk struct {
	Choices []struct {
		Delta *rawDelta `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error,omitempty"`
}

type rawDelta struct {
	Content   string            `json:"content"`
	Reasoning string            `json:"reasoning"`
	Images    []json.RawMessage `json:"images"`
}

type rawImage struct {
	Type     string `json:"type"`
	ImageURL *struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	} `json:"image_url"`
	ImageBase64 *struct {
		B64JSON  string `json:"b64_json"`
		MimeType string `json:"mime_type"`
	} `json:"image_base64"`
}

const defaultImageMimeType = "image/png"

// normalizeImages converts provider image entries to aisdk.Image. Inline
// base64 payloads become data URLs. Malformed entries are skipped.
func normalizeImages(entries []json.RawMessage, logger *slog.Logger) []aisdk.Image {
	if len(entries) == 0 {
		return nil
	}
	var images []aisdk.Image
	for i, entry := range entries {
		var img rawImage
		if err := json.Unmarshal(entry, &img); err != nil {
			logger.Debug("skipping malformed image entry", "index", i, "error", err)
			continue
		}
		switch {
		case img.Type == "image_url" && img.ImageURL != nil && img.ImageURL.URL != "":
			images = append(images, aisdk.Image{
				Type: aisdk.ImageTypeURL,
				URL:  img.ImageURL.URL,
				Alt:  img.ImageURL.Alt,
			})
		case img.Type == "image_base64" && img.ImageBase64 != nil && img.ImageBase64.B64JSON != "":
			mime := img.ImageBase64.MimeType
			if mime == "" {
				mime = defaultImageMimeType
			}
			images = append(images, aisdk.Image{
				Type: aisdk.ImageTypeURL,
				URL:  "data:" + mime + ";base64," + img.ImageBase64.B64JSON,
			})
		default:
			logger.Debug("skipping unsupported image entry", "index", i, "type", img.Type)
		}
	}
	return images
}

// ReadError is a transport failure while reading the stream.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ProviderError is an error object sent by the provider inside the stream.
type ProviderError struct {
	Code    json.RawMessage
	Message string
}

func (e *ProviderError) Error() string {
	if len(e.Code) > 0 && string(e.Code) != "null" {
		return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
	}
	return "provider error: " + e.Message
}
