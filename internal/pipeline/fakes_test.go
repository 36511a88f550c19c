package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	tags     map[string]string
	types    map[string]string
	fetchErr error
	putErr   error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, tags: map[string]string{}, types: map[string]string{}}
}

func (s *memStore) Fetch(_ context.Context, bucket, key string, w io.Writer) error {
	if s.fetchErr != nil {
		return s.fetchErr
	}
	s.mu.Lock()
	data, ok := s.objects[bucket+"/"+key]
	s.mu.Unlock()
	if !ok {
		return errors.New("no such key")
	}
	_, err := w.Write(data)
	return err
}

func (s *memStore) Owner(_ context.Context, bucket, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags[bucket+"/"+key], nil
}

func (s *memStore) Put(_ context.Context, bucket, key, contentType string, body []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = bytes.Clone(body)
	s.types[bucket+"/"+key] = contentType
	return nil
}

type memRelocator struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (r *memRelocator) Relocate(_ context.Context, key string, src io.Reader) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.objects == nil {
		r.objects = map[string][]byte{}
	}
	r.objects[key] = data
	return "gs://speech/" + key, nil
}

type stubRecognizer struct {
	text string
	err  error
	uris []string
}

func (r *stubRecognizer) Recognize(_ context.Context, uri string) (string, error) {
	r.uris = append(r.uris, uri)
	return r.text, r.err
}

type recordingForwarder struct {
	requests []DeliveryRequest
	err      error
}

func (f *recordingForwarder) Forward(_ context.Context, req DeliveryRequest) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

type stubPresigner struct {
	uploadErr   error
	downloadErr error
	tags        map[string]string
}

func (p *stubPresigner) PresignUpload(_ context.Context, bucket, key string, tags map[string]string, ttl time.Duration) (*Capability, error) {
	if p.uploadErr != nil {
		return nil, p.uploadErr
	}
	p.tags = tags
	return &Capability{
		URL:       "https://" + bucket + ".example/" + key + "?signed",
		Method:    "PUT",
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (p *stubPresigner) PresignDownload(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	if p.downloadErr != nil {
		return "", p.downloadErr
	}
	return "https://" + bucket + ".example/" + key + "?download", nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n Notification) (DispatchResult, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(DispatchResult), args.Error(1)
}
