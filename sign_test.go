package tosig

import (
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/zeebo/assert"
)

const (
	testAccessKeyID     = "AKID"
	testSecretAccessKey = "SECRET"
	testBucket          = "test-bucket"
	testRegion          = "cn-beijing"
	testEndpoint        = "tos-cn-beijing.volces.com"
)

func newTestSigner() *Signer {
	s := NewSigner(Credentials{
		AccessKeyID:     testAccessKeyID,
		SecretAccessKey: testSecretAccessKey,
	}, testRegion, testEndpoint)
	s.now = dummyNow(2025, 1, 1, 0, 0, 0)
	return s
}

func TestSignKnownVectors(t *testing.T) {
	signer := newTestSigner()

	t.Run("GET bucket root with unsigned payload", func(t *testing.T) {
		headers := signer.Sign(SignRequest{Method: http.MethodGet, Bucket: testBucket})

		assert.Equal(t, "test-bucket.tos-cn-beijing.volces.com", headers.Get(headerHost))
		assert.Equal(t, "20250101T000000Z", headers.Get(headerXTosDate))
		assert.Equal(t, unsignedPayload, headers.Get(headerXTosContentSHA256))
		assert.Equal(t, defaultContentType, headers.Get(headerContentType))
		assert.Equal(t,
			"TOS4-HMAC-SHA256 Credential=AKID/20250101/cn-beijing/tos/request, "+
				"SignedHeaders=host;x-tos-content-sha256;x-tos-date, "+
				"Signature=8e9907ddcb3d272b89f936929562f1013eddb0201a144610c4c30273ab8e192e",
			headers.Get(headerAuthorization))
	})
	t.Run("PUT with multi-segment non-ASCII key and payload hash", func(t *testing.T) {
		headers := signer.Sign(SignRequest{
			Method:        http.MethodPut,
			Bucket:        testBucket,
			Key:           "path/to/文件 (1).txt",
			ContentType:   "text/plain",
			ContentSHA256: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		})

		assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			headers.Get(headerXTosContentSHA256))
		assert.Equal(t, "text/plain", headers.Get(headerContentType))
		assert.That(t, strings.HasSuffix(headers.Get(headerAuthorization),
			"Signature=25f414c4ef1dd47866feffd02afc45ffaa3da1e14c4aec40f597c77217ffb6d3"))
	})
	t.Run("GET with pre-encoded sorted query", func(t *testing.T) {
		headers := signer.Sign(SignRequest{
			Method:   http.MethodGet,
			Bucket:   testBucket,
			RawQuery: "delimiter=%2F&max-keys=100&prefix=docs%2F",
		})

		assert.That(t, strings.HasSuffix(headers.Get(headerAuthorization),
			"Signature=39c83d95e7f78b89f3f976f25addefb151cec8ef23379d218a225fd06230c648"))
	})
}

func TestSignDeterminism(t *testing.T) {
	signer := newTestSigner()

	r := SignRequest{
		Method:        http.MethodPut,
		Key:           "a/b/c.bin",
		ContentSHA256: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
	}

	first, second := signer.Sign(r), signer.Sign(r)

	for _, name := range []string{
		headerHost,
		headerXTosDate,
		headerXTosContentSHA256,
		headerAuthorization,
		headerContentType,
	} {
		assert.Equal(t, first.Get(name), second.Get(name))
	}
	assert.Equal(t, 5, len(first))
}

func TestSignTimestampSensitivity(t *testing.T) {
	signer := newTestSigner()

	first := signer.Sign(SignRequest{Method: http.MethodGet, Bucket: testBucket})

	signer.now = dummyNow(2025, 1, 1, 0, 0, 1)
	second := signer.Sign(SignRequest{Method: http.MethodGet, Bucket: testBucket})

	assert.Equal(t, "20250101T000001Z", second.Get(headerXTosDate))
	assert.That(t, first.Get(headerXTosDate) != second.Get(headerXTosDate))
	assert.That(t, first.Get(headerAuthorization) != second.Get(headerAuthorization))
	assert.That(t, strings.HasSuffix(second.Get(headerAuthorization),
		"Signature=cd728d52cbc72a133b2994ad58defdacbe309f9c327c663fcafe4e52e1db4481"))
}

func TestSignFixedTimestampOverride(t *testing.T) {
	signer := newTestSigner()
	signer.now = func() time.Time { panic("clock must not be consulted") }

	headers := signer.Sign(SignRequest{
		Method: http.MethodGet,
		Time:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "20250101T000000Z", headers.Get(headerXTosDate))
}

func TestSignAlgorithmTag(t *testing.T) {
	headers := newTestSigner().Sign(SignRequest{Method: http.MethodDelete, Key: "k"})

	assert.That(t, strings.HasPrefix(headers.Get(headerAuthorization), "TOS4-HMAC-SHA256 Credential="))
}

func TestSignCredentialScope(t *testing.T) {
	headers := newTestSigner().Sign(SignRequest{Method: http.MethodGet})

	authorization := headers.Get(headerAuthorization)
	_, after, ok := strings.Cut(authorization, "Credential=")
	assert.That(t, ok)
	credential, _, ok := strings.Cut(after, ",")
	assert.That(t, ok)
	assert.Equal(t, testAccessKeyID+"/20250101/cn-beijing/tos/request", credential)
}

func TestCanonicalRequest(t *testing.T) {
	signer := newTestSigner()

	t.Run("empty key", func(t *testing.T) {
		expected := strings.Join([]string{
			"GET",
			"/",
			"",
			"host:test-bucket.tos-cn-beijing.volces.com",
			"x-tos-content-sha256:UNSIGNED-PAYLOAD",
			"x-tos-date:20250101T000000Z",
			"",
			"host;x-tos-content-sha256;x-tos-date",
			"UNSIGNED-PAYLOAD",
		}, "\n")

		actual := signer.canonicalRequest(
			SignRequest{Method: http.MethodGet},
			"test-bucket.tos-cn-beijing.volces.com",
			unsignedPayload,
			"20250101T000000Z",
		)
		assert.Equal(t, expected, actual)
	})
	t.Run("non-ASCII key keeps literal slashes", func(t *testing.T) {
		actual := signer.canonicalRequest(
			SignRequest{Method: http.MethodPut, Key: "path/to/文件 (1).txt"},
			"test-bucket.tos-cn-beijing.volces.com",
			unsignedPayload,
			"20250101T000000Z",
		)
		assert.That(t, strings.Contains(actual, "\n/path/to/%E6%96%87%E4%BB%B6%20%281%29.txt\n"))
	})
}

func TestCanonicalURI(t *testing.T) {
	assert.Equal(t, "/", canonicalURI(""))
	assert.Equal(t, "/simple.txt", canonicalURI("simple.txt"))
	assert.Equal(t, "/a/b/c", canonicalURI("a/b/c"))
	assert.Equal(t, "/path/to/%E6%96%87%E4%BB%B6%20%281%29.txt", canonicalURI("path/to/文件 (1).txt"))
	assert.Equal(t, "/it%27s%20%2A.txt", canonicalURI("it's *.txt"))
}

func TestSigningKey(t *testing.T) {
	key := signingKey(testSecretAccessKey, "20250101", testRegion)

	assert.Equal(t,
		"ae1dcf3c4a61c6cff883ee8564f713a8555b775cae59da8d91b4aa965e1ba96b",
		hex.EncodeToString(key))
}

func TestScopeString(t *testing.T) {
	s := scope{date: "20250101", region: "cn-beijing"}
	assert.Equal(t, "20250101/cn-beijing/tos/request", s.String())
}
