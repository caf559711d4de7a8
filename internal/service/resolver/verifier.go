package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	domain "github.com/manekisoft/update-server/internal/domain/release"
	repository "github.com/manekisoft/update-server/internal/repository/release"
)

// Verifier checks that stored artifacts match the size and digest recorded
// in their release metadata. Verification is lazy: it runs when an artifact
// is resolved for download, never eagerly over the whole repository.
type Verifier struct {
	// store provides metadata and artifact locations.
	store repository.Store
}

// NewVerifier creates a verifier over the provided store.
func NewVerifier(store repository.Store) *Verifier {
	return &Verifier{
		store: store,
	}
}

// Digest computes the lowercase hex sha256 of the reader's content.
// It streams, so artifacts never need to be resident in memory at once and
// an enclosing timeout can take effect between chunks.
func (*Verifier) Digest(r io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("digest artifact: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify compares the artifact on disk against the size and sha256 recorded
// in the release metadata. A disagreement yields an IntegrityError matching
// ErrIntegrityMismatch.
//
// Only application artifacts carry a recorded digest; for installers the
// existence check performed by the store is all the repository format allows.
func (vf *Verifier) Verify(ctx context.Context, v domain.Version, kind domain.ArtifactKind) error {
	path, err := vf.store.ArtifactPath(ctx, v, kind)
	if err != nil {
		return err
	}

	if kind != domain.ArtifactApplication {
		return nil
	}

	metadata, err := vf.store.GetMetadata(ctx, v)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat artifact of %s: %w", v, err)
	}

	if info.Size() != metadata.Size {
		return &domain.IntegrityError{
			Version:  v,
			Kind:     kind,
			Field:    "size",
			Expected: strconv.FormatInt(metadata.Size, 10),
			Actual:   strconv.FormatInt(info.Size(), 10),
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact of %s: %w", v, err)
	}

	defer func() {
		_ = file.Close()
	}()

	actual, err := vf.Digest(file)
	if err != nil {
		return err
	}

	if actual != metadata.SHA256 {
		return &domain.IntegrityError{
			Version:  v,
			Kind:     kind,
			Field:    "sha256",
			Expected: metadata.SHA256,
			Actual:   actual,
		}
	}

	return nil
}
