package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Receipt is a raw COSE_Sign1 settlement receipt.
type Receipt []byte

// ReceiptBase64 is a receipt in standard base64, as carried in JSON responses.
type ReceiptBase64 string

// ReceiptURLBase64 is a receipt in unpadded URL-safe base64.
type ReceiptURLBase64 string

// ReceiptGzip is a gzipped receipt in unpadded URL-safe base64, compact enough for a query parameter.
type ReceiptGzip string

func (r Receipt) EncodeBase64() ReceiptBase64 {
	return ReceiptBase64(base64.StdEncoding.EncodeToString(r))
}

func (r Receipt) EncodeURLSafe() ReceiptURLBase64 {
	return ReceiptURLBase64(base64.RawURLEncoding.EncodeToString(r))
}

// CompressGzip gzips the receipt. Output is deterministic for a given receipt.
func (r Receipt) CompressGzip() (ReceiptGzip, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := w.Write(r); err != nil {
		return "", fmt.Errorf("gzip receipt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gzip receipt: %w", err)
	}
	return ReceiptGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

func (b ReceiptBase64) String() string { return string(b) }

func (b ReceiptBase64) Decode() (Receipt, error) {
	data, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode receipt base64: %w", err)
	}
	return Receipt(data), nil
}

func (u ReceiptURLBase64) String() string { return string(u) }

// Decode accepts both padded and unpadded input.
func (u ReceiptURLBase64) Decode() (Receipt, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(u), "="))
	if err != nil {
		return nil, fmt.Errorf("decode receipt base64url: %w", err)
	}
	return Receipt(data), nil
}

func (g ReceiptGzip) String() string { return string(g) }

func (g ReceiptGzip) Decompress() (Receipt, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return Receipt(data), nil
}

// ParseReceipt decodes a receipt given in any of the encodings above, or as raw bytes read from a
// file. Gzip is tried first since its magic bytes are unambiguous.
func ParseReceipt(input []byte) (Receipt, error) {
	s := strings.TrimSpace(string(input))
	if s == "" {
		return nil, fmt.Errorf("empty receipt")
	}
	if r, err := ReceiptGzip(s).Decompress(); err == nil {
		return r, nil
	}
	if r, err := ReceiptBase64(s).Decode(); err == nil {
		return r, nil
	}
	if r, err := ReceiptURLBase64(s).Decode(); err == nil {
		return r, nil
	}
	return Receipt(input), nil
}
