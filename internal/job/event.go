package job

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Trigger is a confirmed write of one object.
type Trigger struct {
	Bucket string
	Key    string
}

// Identity derives the job identity for the written object. Caption documents
// are rejected so a bucket shared by uploads and results cannot loop.
func (t Trigger) Identity() (Identity, error) {
	if t.Bucket == "" {
		return Identity{}, fmt.Errorf("%w: missing bucket", ErrMalformedTrigger)
	}
	if strings.HasSuffix(t.Key, ResultSuffix) {
		return Identity{}, fmt.Errorf("%w: %s is a caption document", ErrMalformedTrigger, t.Key)
	}
	return Derive(t.Key)
}

type storageEvent struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseStorageEvent reads an S3-style object-created notification. Object keys
// arrive URL-encoded.
func ParseStorageEvent(body []byte) ([]Trigger, error) {
	var event storageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrigger, err)
	}
	if len(event.Records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrMalformedTrigger)
	}

	triggers := make([]Trigger, 0, len(event.Records))
	for _, record := range event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: object key %q: %v", ErrMalformedTrigger, record.S3.Object.Key, err)
		}
		if key == "" || record.S3.Bucket.Name == "" {
			return nil, fmt.Errorf("%w: record without bucket or key", ErrMalformedTrigger)
		}
		triggers = append(triggers, Trigger{Bucket: record.S3.Bucket.Name, Key: key})
	}
	return triggers, nil
}
