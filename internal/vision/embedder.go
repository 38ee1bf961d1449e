package vision

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/faceattend/faceattend/internal/config"
)

// Embedder maps a cropped face to a fixed-length unit vector using the
// OpenFace embedding network.
type Embedder struct {
	net       gocv.Net
	inputSize image.Point
	scale     float64
	swapRB    bool
	dim       int
}

func newEmbedder(dir string, m config.EmbedderManifest) (*Embedder, error) {
	path := filepath.Join(dir, m.Weights)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}

	net := gocv.ReadNetFromTorch(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: could not read torch net from %s", ErrModelLoad, path)
	}

	return &Embedder{
		net:       net,
		inputSize: image.Pt(m.InputSize, m.InputSize),
		scale:     m.Scale,
		swapRB:    m.SwapRB,
		dim:       m.Dim,
	}, nil
}

// Dim returns the embedding dimension the network produces.
func (e *Embedder) Dim() int { return e.dim }

// Embed runs the face crop through the network and L2-normalizes the output.
// A zero-norm raw vector means the forward pass degenerated; that is an
// error, never a valid embedding.
func (e *Embedder) Embed(face gocv.Mat) ([]float32, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(face, &resized, e.inputSize, 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, e.scale, e.inputSize, gocv.NewScalar(0, 0, 0, 0), e.swapRB, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	total := out.Total()
	if total != e.dim {
		return nil, fmt.Errorf("%w: network produced %d values, expected %d", ErrEmbeddingFailed, total, e.dim)
	}

	raw := make([]float32, total)
	for i := 0; i < total; i++ {
		raw[i] = out.GetFloatAt(0, i)
	}

	return l2Normalize(raw)
}

func (e *Embedder) Close() error {
	return e.net.Close()
}

// l2Normalize scales a vector to unit Euclidean norm. Fails on zero norm.
func l2Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, fmt.Errorf("%w: embedding norm is zero", ErrEmbeddingFailed)
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
