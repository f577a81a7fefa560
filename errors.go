package tosig

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrConfigInvalid = errors.New("configuration invalid")

	ErrRequestFailed = errors.New("request failed")

	ErrNoSuchKey = errors.New("no such key")

	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// APIError is a decoded service error envelope.
type APIError struct {
	Code       string
	Message    string
	RequestID  string
	StatusCode int
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d, request %s)", e.Code, e.Message, e.StatusCode, e.RequestID)
}

func (e APIError) Is(target error) bool {
	switch {
	case target == ErrRequestFailed:
		return true
	case target == ErrNoSuchKey:
		return e.Code == "NoSuchKey" || e.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

type errorEnvelope struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

const maxErrorBody = 1 << 20

// decodeAPIError turns a non-2xx response into an APIError. Bodies that do not
// carry the XML envelope (HEAD responses, proxies) degrade to the HTTP status.
func decodeAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		body = nil
	}

	var envelope errorEnvelope
	if xml.Unmarshal(body, &envelope) == nil && envelope.Code != "" {
		return APIError{
			Code:       envelope.Code,
			Message:    envelope.Message,
			RequestID:  envelope.RequestID,
			StatusCode: resp.StatusCode,
		}
	}

	requestID := resp.Header.Get("X-Tos-Request-Id")

	return APIError{
		Code:       http.StatusText(resp.StatusCode),
		Message:    strings.TrimSpace(string(body)),
		RequestID:  requestID,
		StatusCode: resp.StatusCode,
	}
}
