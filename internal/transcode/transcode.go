// Package transcode converts raw uploaded bytes to base64 payloads and back.
// It is the single place where MIME types are detected for uploads.
package transcode

import (
	"encoding/base64"
	"net/http"
	"strings"

	"imagestudio/internal/domain"
)

// Payload is the base64 form of an uploaded binary.
type Payload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Encode converts raw uploaded bytes into a base64 payload. When the caller
// declares no MIME type it is sniffed from the content.
func Encode(data []byte, declaredMIME string) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, domain.NewError(domain.ErrorRead, "file yielded no binary data", nil)
	}
	mime := strings.TrimSpace(declaredMIME)
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Payload{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mime,
	}, nil
}

// Decode reconstructs the raw bytes from a base64 payload for download or
// preview use. The MIME type is passed through untouched.
func Decode(data, mimeType string) (domain.ImageBlob, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return domain.ImageBlob{}, domain.NewError(domain.ErrorRead, "decode base64 payload", err)
	}
	if len(raw) == 0 {
		return domain.ImageBlob{}, domain.NewError(domain.ErrorRead, "payload is empty", nil)
	}
	return domain.ImageBlob{Data: raw, MIMEType: mimeType}, nil
}
