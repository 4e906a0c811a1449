package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store backed by an in-memory fake S3 transport
// handling the Get, Put, Delete and ListObjectsV2 calls the store makes.
func NewMockForTests(prefix string) *Store {
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket", prefix: prefix}
}

type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string][]byte
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.state[key] = body
		return response(http.StatusOK, nil, http.Header{"ETag": {"\"etag\""}}), nil
	case http.MethodGet:
		body, ok := m.state[key]
		if !ok {
			return response(http.StatusNotFound,
				[]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`),
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return response(http.StatusOK, body, http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(body))},
			"Content-Type":   {contentType},
			"ETag":           {"\"etag\""},
		}), nil
	case http.MethodDelete:
		delete(m.state, key)
		return response(http.StatusNoContent, nil, http.Header{}), nil
	}
	return response(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (m *mockRoundTripper) list(prefix string) *http.Response {
	var keys []string
	for k := range m.state {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.state[k]))
	}
	b.WriteString("</ListBucketResult>")
	return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func response(status int, body []byte, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header}
}

// decodeChunked unwraps a single-chunk aws-chunked payload:
// <hex>\r\n<body>\r\n0\r\n[trailers]
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	var size int64
	if _, err := fmt.Sscanf(parts[0], "%x", &size); err != nil {
		return nil, false
	}
	if int64(len(parts[1])) != size || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}
