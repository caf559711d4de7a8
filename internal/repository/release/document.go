package release

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"

	domain "github.com/manekisoft/update-server/internal/domain/release"
)

// metadataSchema is the JSON Schema every version.json must satisfy before
// the typed cross-checks run.
//
//go:embed schema/version.schema.json
var metadataSchema []byte

// compiledSchema is built once at package load; the schema is embedded, so a
// compile failure is a programming error.
var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	schema, err := compiler.Compile(metadataSchema)
	if err != nil {
		panic(fmt.Sprintf("compile embedded metadata schema: %v", err))
	}

	return schema
}

// releaseDateLayouts are the accepted release_date encodings, tried in order.
// RFC 3339 is canonical; the space-separated layout appears in repositories
// published by the legacy tooling.
var releaseDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// metadataDocument is the wire schema of version.json.
type metadataDocument struct {
	Version     string   `json:"version"`
	Build       int64    `json:"build"`
	ReleaseDate string   `json:"release_date"`
	DownloadURL string   `json:"download_url,omitempty"`
	Size        int64    `json:"size"`
	SHA256      string   `json:"sha256"`
	Changelog   []string `json:"changelog"`
	Required    bool     `json:"required"`
	MinVersion  string   `json:"min_version,omitempty"`
}

// pointerDocument is the wire schema of latest.json. The legacy publisher
// sometimes writes a full metadata document there, so only the version field
// is read.
type pointerDocument struct {
	Version string `json:"version"`
}

// validateDocument runs the schema pass over raw version.json bytes.
func validateDocument(raw []byte) error {
	result := compiledSchema.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}

	return fmt.Errorf("%w: schema validation failed: %v", domain.ErrMalformedMetadata, result.Errors)
}

// toDomain converts a validated document into the typed metadata record,
// performing the cross-checks the schema cannot express.
func (doc *metadataDocument) toDomain(dirVersion domain.Version, raw []byte) (*domain.Metadata, error) {
	declared, err := domain.ParseVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: version field: %s", domain.ErrMalformedMetadata, doc.Version)
	}

	if !declared.Equal(dirVersion) {
		return nil, fmt.Errorf("%w: version field %s does not match directory %s",
			domain.ErrMalformedMetadata, declared, dirVersion)
	}

	releaseDate, err := parseReleaseDate(doc.ReleaseDate)
	if err != nil {
		return nil, err
	}

	var minVersion *domain.Version

	if doc.MinVersion != "" {
		parsed, minErr := domain.ParseVersion(doc.MinVersion)
		if minErr != nil {
			return nil, fmt.Errorf("%w: min_version field: %s", domain.ErrMalformedMetadata, doc.MinVersion)
		}

		minVersion = &parsed
	}

	fingerprint, err := documentFingerprint(raw)
	if err != nil {
		return nil, err
	}

	return &domain.Metadata{
		Version:     declared,
		Build:       doc.Build,
		ReleaseDate: releaseDate,
		DownloadURL: doc.DownloadURL,
		Size:        doc.Size,
		SHA256:      strings.ToLower(doc.SHA256),
		Changelog:   append([]string(nil), doc.Changelog...),
		Required:    doc.Required,
		MinVersion:  minVersion,
		Fingerprint: fingerprint,
	}, nil
}

// parseReleaseDate accepts the known release_date layouts.
func parseReleaseDate(text string) (time.Time, error) {
	for _, layout := range releaseDateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: release_date field: %s", domain.ErrMalformedMetadata, text)
}

// documentFingerprint hashes the JCS-canonicalized document, so formatting
// and key order do not affect the value.
func documentFingerprint(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalize: %v", domain.ErrMalformedMetadata, err)
	}

	digest := sha256.Sum256(canonical)

	return hex.EncodeToString(digest[:]), nil
}
