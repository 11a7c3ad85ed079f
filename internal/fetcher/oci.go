package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
)

// ResolveOCIDigest resolves an image reference to its pinned digest without
// pulling the archive. Used to log what a pull would bring in.
func ResolveOCIDigest(ctx context.Context, imageRef string) (string, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to parse image reference: %w", err)
	}

	digest, err := crane.Digest(ref.String(), crane.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to resolve digest: %w", err)
	}

	return digest, nil
}

// pullOCIArchive pulls an image whose final layer carries a component
// archive and writes that layer to a temp file. Returns the file path, the
// sha256 of the written bytes, the pinned image digest, and a cleanup func.
func pullOCIArchive(ctx context.Context, imageRef string) (path, sha, digest string, cleanup func(), err error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to parse image reference: %w", err)
	}

	digest, err = crane.Digest(ref.String(), crane.WithContext(ctx))
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to resolve digest: %w", err)
	}

	img, err := crane.Pull(ref.String(), crane.WithContext(ctx))
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to pull %s: %w", imageRef, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to read layers of %s: %w", imageRef, err)
	}
	if len(layers) == 0 {
		return "", "", "", nil, fmt.Errorf("image %s has no layers", imageRef)
	}

	// The component archive is published as the artifact's last layer.
	rc, err := layers[len(layers)-1].Uncompressed()
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to open archive layer of %s: %w", imageRef, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "edupack-oci-*.cpk")
	if err != nil {
		return "", "", "", nil, err
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", "", nil, fmt.Errorf("failed to write archive layer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", "", nil, err
	}

	path = tmp.Name()
	sha = hex.EncodeToString(hasher.Sum(nil))
	cleanup = func() { os.Remove(path) }
	return path, sha, digest, cleanup, nil
}
