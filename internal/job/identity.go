package job

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ResultSuffix is appended to a source key to name its caption document.
const ResultSuffix = ".srt"

// correlationNamespace scopes the name-based UUIDs derived from source keys.
var correlationNamespace = uuid.MustParse("5b0c8a4e-3f7d-4c19-9a61-2f0e8d7c6b15")

// Identity names every artifact of one job. All fields are pure functions of
// SourceKey, so a redelivered trigger resolves to the same job.
type Identity struct {
	SourceKey     string
	CorrelationID string
	ResultKey     string
}

// Derive computes the identity of the job that owns sourceKey.
func Derive(sourceKey string) (Identity, error) {
	if strings.TrimSpace(sourceKey) == "" {
		return Identity{}, fmt.Errorf("%w: empty object key", ErrMalformedTrigger)
	}
	return Identity{
		SourceKey:     sourceKey,
		CorrelationID: CorrelationID(sourceKey),
		ResultKey:     sourceKey + ResultSuffix,
	}, nil
}

// CorrelationID is a version 5 UUID of the source key.
func CorrelationID(sourceKey string) string {
	return uuid.NewSHA1(correlationNamespace, []byte(sourceKey)).String()
}

// RelocationKey is where the speech service reads the job's audio from.
func (id Identity) RelocationKey() string {
	return fmt.Sprintf("audio/%s-%s", id.CorrelationID, path.Base(id.SourceKey))
}

// NewSourceKey builds a fresh upload key for fileName under prefix. The
// random suffix keeps repeated uploads of the same name apart. Names ending in
// ResultSuffix are refused: the transcriber ignores such objects.
func NewSourceKey(prefix, fileName string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%w: invalid file name %q", ErrCapabilityIssuance, fileName)
	}
	ext := path.Ext(base)
	if strings.EqualFold(ext, ResultSuffix) {
		return "", fmt.Errorf("%w: %s files are caption documents, not audio", ErrCapabilityIssuance, ext)
	}
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return fmt.Sprintf("%s%s-%s%s", prefix, stem, uuid.NewString(), ext), nil
}
