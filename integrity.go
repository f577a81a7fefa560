package tosig

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"slices"
	"strconv"

	"github.com/minio/crc64nvme"
)

type ChecksumAlgorithm int

const (
	AlgorithmCRC32 ChecksumAlgorithm = iota
	AlgorithmCRC32C
	AlgorithmCRC64NVME
	AlgorithmMD5
	AlgorithmSHA1
	AlgorithmSHA256
)

func (a ChecksumAlgorithm) valid() bool {
	return a >= AlgorithmCRC32 && a <= AlgorithmSHA256
}

func (a ChecksumAlgorithm) String() string {
	switch a {
	case AlgorithmCRC32:
		return "crc32"
	case AlgorithmCRC32C:
		return "crc32c"
	case AlgorithmCRC64NVME:
		return "crc64nvme"
	case AlgorithmMD5:
		return "md5"
	case AlgorithmSHA1:
		return "sha1"
	case AlgorithmSHA256:
		return "sha256"
	default:
		return strconv.Itoa(int(a))
	}
}

func (a ChecksumAlgorithm) newHash() hash.Hash {
	switch a {
	case AlgorithmCRC32:
		return crc32.NewIEEE()
	case AlgorithmCRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli))
	case AlgorithmCRC64NVME:
		return crc64nvme.New()
	case AlgorithmMD5:
		return md5.New()
	case AlgorithmSHA1:
		return sha1.New()
	case AlgorithmSHA256:
		return sha256.New()
	default:
		return nil
	}
}

// ChecksumRequest asks for a sum to be calculated over an object's content
// and compared against a known value.
type ChecksumRequest struct {
	algorithm ChecksumAlgorithm
	value     []byte
}

// NewChecksumRequest decodes encodedValue as the expected sum for algorithm.
// SHA-256 values are hex-encoded; all others use standard base64.
func NewChecksumRequest(algorithm ChecksumAlgorithm, encodedValue string) (ChecksumRequest, error) {
	if !algorithm.valid() {
		return ChecksumRequest{}, errors.New("invalid algorithm")
	}
	v, err := decodeChecksumString(algorithm, encodedValue)
	if err != nil {
		return ChecksumRequest{}, err
	}
	return ChecksumRequest{
		algorithm: algorithm,
		value:     v,
	}, nil
}

type expectedIntegrity map[ChecksumAlgorithm][]byte

func (i expectedIntegrity) setDecoded(a ChecksumAlgorithm, value []byte) {
	i[a] = value
}

// integrityReader calculates the requested sums while the wrapped reader is
// consumed, in a single pass over the content.
type integrityReader struct {
	r io.Reader

	hashes map[ChecksumAlgorithm]hash.Hash
	sums   map[ChecksumAlgorithm][]byte
}

func (r *integrityReader) Read(p []byte) (n int, err error) {
	return r.r.Read(p)
}

func (r *integrityReader) checksums() (map[ChecksumAlgorithm][]byte, error) {
	if r.sums == nil {
		return nil, errors.New("verify has not been called yet")
	}

	sums := make(map[ChecksumAlgorithm][]byte, len(r.sums))

	for k, v := range r.sums {
		sums[k] = slices.Clone(v)
	}

	return sums, nil
}

func (r *integrityReader) verify(integrity expectedIntegrity) error {
	r.sums = make(map[ChecksumAlgorithm][]byte)

	var errs error
	for algo := range integrity {
		if _, ok := r.hashes[algo]; !ok {
			errs = errors.Join(errs, fmt.Errorf("calculation of %s was not requested", algo))
		}
	}
	for algo, h := range r.hashes {
		sum := h.Sum(nil)

		r.sums[algo] = sum

		if expected, ok := integrity[algo]; !ok {
			// not requested, skip verification
		} else if !bytes.Equal(expected, sum) {
			errs = errors.Join(errs, fmt.Errorf("%s do not match: expected %x, got %x", algo, expected, sum))
		}
	}

	return errs
}

func newIntegrityReader(r io.Reader, algorithms []ChecksumAlgorithm) *integrityReader {
	ir := &integrityReader{
		hashes: make(map[ChecksumAlgorithm]hash.Hash),
	}

	var writers []io.Writer

	for _, a := range algorithms {
		if _, ok := ir.hashes[a]; ok || !a.valid() {
			continue
		}
		h := a.newHash()
		ir.hashes[a] = h
		writers = append(writers, h)
	}

	if len(writers) == 0 {
		ir.r = r
	} else {
		ir.r = io.TeeReader(r, io.MultiWriter(writers...))
	}

	return ir
}

func decodeChecksumString(a ChecksumAlgorithm, v string) ([]byte, error) {
	switch a {
	case AlgorithmSHA256:
		return hex.DecodeString(v)
	default:
		return base64.StdEncoding.DecodeString(v)
	}
}
