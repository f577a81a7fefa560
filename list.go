package tosig

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ListOptions struct {
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   int
}

type ListEntry struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type ListResult struct {
	Contents       []ListEntry
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

// rawQuery renders the options as the signer expects them: percent-encoded and
// sorted lexicographically by parameter name.
func (o ListOptions) rawQuery() string {
	params := make(map[string]string)
	if o.Prefix != "" {
		params["prefix"] = o.Prefix
	}
	if o.Delimiter != "" {
		params["delimiter"] = o.Delimiter
	}
	if o.Marker != "" {
		params["marker"] = o.Marker
	}
	if o.MaxKeys > 0 {
		params["max-keys"] = strconv.Itoa(o.MaxKeys)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)

	b := new(strings.Builder)
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(uriEncode(params[name], true))
	}
	return b.String()
}

type listEntryPayload struct {
	Key          string `json:"Key" xml:"Key"`
	Size         int64  `json:"Size" xml:"Size"`
	ETag         string `json:"ETag" xml:"ETag"`
	LastModified string `json:"LastModified" xml:"LastModified"`
}

type listPrefixPayload struct {
	Prefix string `json:"Prefix" xml:"Prefix"`
}

type listPayload struct {
	XMLName        xml.Name            `json:"-" xml:"ListBucketResult"`
	Contents       []listEntryPayload  `json:"Contents" xml:"Contents"`
	CommonPrefixes []listPrefixPayload `json:"CommonPrefixes" xml:"CommonPrefixes"`
	IsTruncated    bool                `json:"IsTruncated" xml:"IsTruncated"`
	NextMarker     string              `json:"NextMarker" xml:"NextMarker"`
}

func (p listPayload) toResult() ListResult {
	result := ListResult{
		IsTruncated: p.IsTruncated,
		NextMarker:  p.NextMarker,
	}
	for _, e := range p.Contents {
		entry := ListEntry{
			Key:  e.Key,
			Size: e.Size,
			ETag: e.ETag,
		}
		if t, err := time.Parse(time.RFC3339, e.LastModified); err == nil {
			entry.LastModified = t
		}
		result.Contents = append(result.Contents, entry)
	}
	for _, cp := range p.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, cp.Prefix)
	}
	return result
}

// parseListResponse accepts either representation the service is known to
// produce: a JSON document or the XML ListBucketResult envelope.
func parseListResponse(body []byte) (ListResult, error) {
	var payload listPayload

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(body, &payload); err != nil {
			return ListResult{}, nestError(ErrRequestFailed, "parse list response: %w", err)
		}
		return payload.toResult(), nil
	}

	if err := xml.Unmarshal(body, &payload); err != nil {
		return ListResult{}, nestError(ErrRequestFailed, "parse list response: %w", err)
	}
	return payload.toResult(), nil
}

// ListObjects lists keys in the client's bucket with a single GET against the
// bucket root.
func (c *Client) ListObjects(ctx context.Context, opts ListOptions) (ListResult, error) {
	req, err := c.newRequest(ctx, SignRequest{
		Method:   http.MethodGet,
		RawQuery: opts.rawQuery(),
	}, nil)
	if err != nil {
		return ListResult{}, err
	}

	c.log.Debug().Str("prefix", opts.Prefix).Msg("listing objects")

	resp, err := c.do(req)
	if err != nil {
		return ListResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ListResult{}, nestError(ErrRequestFailed, "read list response: %w", err)
	}

	return parseListResponse(body)
}
