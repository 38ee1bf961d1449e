package vision

import (
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"github.com/faceattend/faceattend/internal/config"
)

// Pipeline bundles the detector chain and the embedder into the one
// operation the workflows need: image bytes in, unit embedding plus audit
// crop out.
type Pipeline struct {
	detectors Chain
	embedder  *Embedder
}

// NewPipeline loads all model artifacts. Any missing or unreadable file is
// fatal: the caller must refuse to serve requests.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	dnn, err := newDNNDetector(cfg.Models.Dir, cfg.Manifest.Detector, cfg.Match.DetectorConfidence)
	if err != nil {
		return nil, err
	}
	cascade, err := newCascadeDetector(cfg.Models.Dir, cfg.Manifest.Cascade)
	if err != nil {
		dnn.Close()
		return nil, err
	}
	embedder, err := newEmbedder(cfg.Models.Dir, cfg.Manifest.Embedder)
	if err != nil {
		dnn.Close()
		cascade.Close()
		return nil, err
	}

	log.Printf("face models loaded from %s (embedding dim %d)", cfg.Models.Dir, embedder.Dim())
	return &Pipeline{
		detectors: Chain{dnn, cascade},
		embedder:  embedder,
	}, nil
}

// Dim returns the embedding dimension of the loaded network.
func (p *Pipeline) Dim() int { return p.embedder.Dim() }

// ExtractEmbedding decodes the image, locates one face, and embeds it.
// It returns the unit embedding and the face crop as PNG bytes.
func (p *Pipeline) ExtractEmbedding(data []byte) ([]float32, []byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, nil, err
	}
	defer img.Close()

	box, err := p.detectors.Locate(img)
	if err != nil {
		return nil, nil, err
	}

	face := img.Region(box)
	defer face.Close()

	embedding, err := p.embedder.Embed(face)
	if err != nil {
		return nil, nil, err
	}

	crop, err := encodePNG(face)
	if err != nil {
		return nil, nil, err
	}
	return embedding, crop, nil
}

// Close releases the native network handles.
func (p *Pipeline) Close() {
	for _, d := range p.detectors {
		if closer, ok := d.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Printf("closing detector %s: %v", d.Name(), err)
			}
		}
	}
	if err := p.embedder.Close(); err != nil {
		log.Printf("closing embedder: %v", err)
	}
}

// decodeImage turns uploaded bytes into a BGR Mat.
func decodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty payload", ErrImageDecode)
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, ErrImageDecode
	}
	return img, nil
}

// encodePNG serializes a Mat as PNG for the stored audit crop.
func encodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encoding face crop: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
