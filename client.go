package tosig

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Client performs object operations against a single bucket. Every operation
// builds the signer inputs, attaches the signed header set and issues one HTTP
// call; there is no retrying and no connection management beyond what the
// underlying http.Client provides.
type Client struct {
	signer *Signer
	bucket string
	scheme string

	httpClient *http.Client
	log        zerolog.Logger
	debug      bool
}

func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if cfg.Debug {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}

	credentials := Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}

	return &Client{
		signer: NewSigner(credentials, cfg.Region, cfg.Endpoint).WithLogger(log),
		bucket: cfg.Bucket,
		scheme: cfg.Scheme,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		log:   log,
		debug: cfg.Debug,
	}, nil
}

// WithHTTPClient returns a copy of the client that issues requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	n := *c
	n.httpClient = hc
	return &n
}

func (c *Client) newRequest(ctx context.Context, sr SignRequest, body io.Reader) (*http.Request, error) {
	sr.Bucket = c.bucket
	sr.Debug = c.debug

	headers := c.signer.Sign(sr)

	u := c.scheme + "://" + headers.Get(headerHost) + canonicalURI(sr.Key)
	if sr.RawQuery != "" {
		u += "?" + sr.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, sr.Method, u, body)
	if err != nil {
		return nil, nestError(ErrRequestFailed, "new request: %w", err)
	}

	req.Host = headers.Get(headerHost)
	for name, values := range headers {
		if name == headerHost {
			continue
		}
		req.Header[name] = values
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nestError(ErrRequestFailed, "%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeAPIError(resp)
	}

	return resp, nil
}
