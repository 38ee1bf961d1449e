// Package vision wraps the OpenCV face detection and embedding networks
// behind the pipeline the registration and recognition workflows use.
package vision

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/faceattend/faceattend/internal/config"
)

// Detector finds candidate face boxes in a decoded image. Implementations
// return an empty slice (not an error) when they simply see no face.
type Detector interface {
	Name() string
	Detect(img gocv.Mat) ([]image.Rectangle, error)
}

// Chain tries detectors in order and stops at the first one that returns
// any boxes. The fallback cascade only runs when the DNN finds nothing.
type Chain []Detector

// Locate returns the first box of the first detector with results. Multiple
// faces in frame are not disambiguated: the first candidate wins, full stop.
// Picking a "better" face by size or centrality would change which identity
// gets marked, so any such change has to be deliberate.
func (c Chain) Locate(img gocv.Mat) (image.Rectangle, error) {
	for _, d := range c {
		boxes, err := d.Detect(img)
		if err != nil {
			log.Printf("detector %s failed: %v", d.Name(), err)
			continue
		}
		if len(boxes) > 0 {
			return boxes[0], nil
		}
	}
	return image.Rectangle{}, ErrNoFaceDetected
}

// dnnDetector runs the SSD face detection network on a fixed-size,
// mean-subtracted input blob and keeps boxes above the confidence cutoff.
type dnnDetector struct {
	net        gocv.Net
	inputSize  image.Point
	mean       gocv.Scalar
	scale      float64
	confidence float32
}

func newDNNDetector(dir string, m config.DetectorManifest, confidence float64) (*dnnDetector, error) {
	proto := filepath.Join(dir, m.Prototxt)
	weights := filepath.Join(dir, m.Weights)
	for _, path := range []string{proto, weights} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
		}
	}

	net := gocv.ReadNetFromCaffe(proto, weights)
	if net.Empty() {
		return nil, fmt.Errorf("%w: could not read caffe net from %s", ErrModelLoad, weights)
	}

	mean := gocv.NewScalar(0, 0, 0, 0)
	if len(m.Mean) == 3 {
		mean = gocv.NewScalar(m.Mean[0], m.Mean[1], m.Mean[2], 0)
	}

	return &dnnDetector{
		net:        net,
		inputSize:  image.Pt(m.InputWidth, m.InputHeight),
		mean:       mean,
		scale:      m.Scale,
		confidence: float32(confidence),
	}, nil
}

func (d *dnnDetector) Name() string { return "ssd" }

func (d *dnnDetector) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	blob := gocv.BlobFromImage(img, d.scale, d.inputSize, d.mean, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	defer prob.Close()

	// The output is a 4D blob [1,1,N,7]; each row is
	// [imageID, classID, confidence, x1, y1, x2, y2] with relative coords.
	detections := gocv.GetBlobChannel(prob, 0, 0)
	defer detections.Close()

	width := float32(img.Cols())
	height := float32(img.Rows())

	var boxes []image.Rectangle
	for r := 0; r < detections.Rows(); r++ {
		confidence := detections.GetFloatAt(r, 2)
		if confidence <= d.confidence {
			continue
		}
		x1 := detections.GetFloatAt(r, 3) * width
		y1 := detections.GetFloatAt(r, 4) * height
		x2 := detections.GetFloatAt(r, 5) * width
		y2 := detections.GetFloatAt(r, 6) * height

		box := clampRect(image.Rect(int(x1), int(y1), int(x2), int(y2)), img.Cols(), img.Rows())
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

func (d *dnnDetector) Close() error {
	return d.net.Close()
}

// cascadeDetector is the classical fallback: a Haar cascade multi-scale
// search over the grayscale image.
type cascadeDetector struct {
	classifier gocv.CascadeClassifier
}

func newCascadeDetector(dir string, m config.CascadeManifest) (*cascadeDetector, error) {
	path := filepath.Join(dir, m.File)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: could not load cascade from %s", ErrModelLoad, path)
	}
	return &cascadeDetector{classifier: classifier}, nil
}

func (d *cascadeDetector) Name() string { return "cascade" }

func (d *cascadeDetector) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	boxes := d.classifier.DetectMultiScale(gray)
	clamped := make([]image.Rectangle, 0, len(boxes))
	for _, box := range boxes {
		box = clampRect(box, img.Cols(), img.Rows())
		if !box.Empty() {
			clamped = append(clamped, box)
		}
	}
	return clamped, nil
}

func (d *cascadeDetector) Close() error {
	return d.classifier.Close()
}

// clampRect intersects a box with the image bounds so Region never reaches
// outside the Mat.
func clampRect(r image.Rectangle, width, height int) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, width, height))
}
