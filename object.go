package tosig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"
)

// SumContentSHA256 hashes a payload for the signer's content-hash input.
func SumContentSHA256(p []byte) string {
	digest := sha256.Sum256(p)
	return hex.EncodeToString(digest[:])
}

// ObjectInfo carries the metadata a response reports about an object.
type ObjectInfo struct {
	ETag          string
	ContentType   string
	ContentLength int64
	LastModified  time.Time
}

func objectInfoFromResponse(resp *http.Response) ObjectInfo {
	info := ObjectInfo{
		ETag:          resp.Header.Get("Etag"),
		ContentType:   resp.Header.Get(headerContentType),
		ContentLength: resp.ContentLength,
	}
	if v := resp.Header.Get("Last-Modified"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			info.LastModified = t
		}
	}
	return info
}

// ObjectReader streams a downloaded object while calculating any requested
// checksums. Requested sums are verified when the body is fully consumed; a
// mismatch surfaces as ErrChecksumMismatch on the final Read.
type ObjectReader struct {
	body io.Closer
	ir   *integrityReader

	integrity expectedIntegrity
}

func (r *ObjectReader) Read(p []byte) (n int, err error) {
	if n, err = r.ir.Read(p); errors.Is(err, io.EOF) {
		if err := r.ir.verify(r.integrity); err != nil {
			return n, nestError(ErrChecksumMismatch, "verify failed: %w", err)
		}
	}
	return n, err
}

// Checksums returns the sums calculated over the content. It is available only
// after the body has been read to EOF.
func (r *ObjectReader) Checksums() (map[ChecksumAlgorithm][]byte, error) {
	return r.ir.checksums()
}

func (r *ObjectReader) Close() error {
	return r.body.Close()
}

// Object is a downloaded object's body and metadata.
type Object struct {
	Body *ObjectReader
	Info ObjectInfo
}

type PutOptions struct {
	ContentType   string
	ContentSHA256 string
	ContentLength int64

	// Checksums lists algorithms to calculate over the uploaded content.
	Checksums []ChecksumAlgorithm
}

type PutResult struct {
	ETag      string
	Checksums map[ChecksumAlgorithm][]byte
}

// PutObject uploads body under key with a single PUT. When opts.ContentSHA256
// is empty the request signs against the unsigned-payload sentinel.
func (c *Client) PutObject(ctx context.Context, key string, body io.Reader, opts PutOptions) (PutResult, error) {
	ir := newIntegrityReader(body, opts.Checksums)

	req, err := c.newRequest(ctx, SignRequest{
		Method:        http.MethodPut,
		Key:           key,
		ContentType:   opts.ContentType,
		ContentSHA256: opts.ContentSHA256,
	}, ir)
	if err != nil {
		return PutResult{}, err
	}
	if opts.ContentLength > 0 {
		req.ContentLength = opts.ContentLength
	}

	c.log.Debug().Str("key", key).Int64("size", opts.ContentLength).Msg("uploading object")

	resp, err := c.do(req)
	if err != nil {
		return PutResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if err := ir.verify(nil); err != nil {
		return PutResult{}, err
	}
	sums, err := ir.checksums()
	if err != nil {
		return PutResult{}, err
	}

	return PutResult{
		ETag:      resp.Header.Get("Etag"),
		Checksums: sums,
	}, nil
}

// PutObjectBytes uploads p with its content hash signed into the request.
func (c *Client) PutObjectBytes(ctx context.Context, key string, p []byte, contentType string) (PutResult, error) {
	return c.PutObject(ctx, key, bytes.NewReader(p), PutOptions{
		ContentType:   contentType,
		ContentSHA256: SumContentSHA256(p),
		ContentLength: int64(len(p)),
	})
}

// GetObject downloads the object under key. Any supplied checksum requests are
// verified against the content as the body is consumed.
func (c *Client) GetObject(ctx context.Context, key string, reqs ...ChecksumRequest) (*Object, error) {
	req, err := c.newRequest(ctx, SignRequest{
		Method: http.MethodGet,
		Key:    key,
	}, nil)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("key", key).Msg("downloading object")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	integrity := make(expectedIntegrity)
	algorithms := make([]ChecksumAlgorithm, 0, len(reqs))
	for _, r := range reqs {
		integrity.setDecoded(r.algorithm, r.value)
		algorithms = append(algorithms, r.algorithm)
	}

	return &Object{
		Body: &ObjectReader{
			body:      resp.Body,
			ir:        newIntegrityReader(resp.Body, algorithms),
			integrity: integrity,
		},
		Info: objectInfoFromResponse(resp),
	}, nil
}

// HeadObject fetches the object's metadata without its content.
func (c *Client) HeadObject(ctx context.Context, key string) (ObjectInfo, error) {
	req, err := c.newRequest(ctx, SignRequest{
		Method: http.MethodHead,
		Key:    key,
	}, nil)
	if err != nil {
		return ObjectInfo{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	return objectInfoFromResponse(resp), nil
}

func (c *Client) DeleteObject(ctx context.Context, key string) error {
	req, err := c.newRequest(ctx, SignRequest{
		Method: http.MethodDelete,
		Key:    key,
	}, nil)
	if err != nil {
		return err
	}

	c.log.Debug().Str("key", key).Msg("deleting object")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// CopyObject server-side copies srcKey from srcBucket to dstKey in the
// client's bucket. An empty srcBucket copies within the client's bucket.
func (c *Client) CopyObject(ctx context.Context, dstKey, srcBucket, srcKey string) error {
	if srcBucket == "" {
		srcBucket = c.bucket
	}

	req, err := c.newRequest(ctx, SignRequest{
		Method: http.MethodPut,
		Key:    dstKey,
	}, nil)
	if err != nil {
		return err
	}

	// The copy source is outside the fixed signed header set; it rides along
	// unsigned, encoded like the canonical URI.
	req.Header.Set(headerXTosCopySource, "/"+srcBucket+canonicalURI(srcKey))

	c.log.Debug().
		Str("source", srcBucket+"/"+srcKey).
		Str("destination", dstKey).
		Msg("copying object")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

