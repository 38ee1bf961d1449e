package vision

import "errors"

var (
	// ErrImageDecode means the uploaded bytes could not be decoded into an
	// image at all.
	ErrImageDecode = errors.New("could not decode image")

	// ErrNoFaceDetected means both detection strategies came up empty.
	ErrNoFaceDetected = errors.New("no face detected in the image")

	// ErrEmbeddingFailed means the embedding forward pass produced a
	// degenerate (zero-norm) vector.
	ErrEmbeddingFailed = errors.New("failed to extract face features")

	// ErrModelLoad is fatal: a model artifact is missing or unreadable.
	// The service must not enter a ready state when it occurs.
	ErrModelLoad = errors.New("face model load failed")
)
