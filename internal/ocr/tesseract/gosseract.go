//go:build tesseract

package tesseract

import (
	"github.com/otiai10/gosseract/v2"
)

func init() {
	defaultFactory = func() client {
		return &gosseractClient{Client: gosseract.NewClient()}
	}
}

type gosseractClient struct {
	*gosseract.Client
}

func (g *gosseractClient) WordConfidences() ([]float64, error) {
	boxes, err := g.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}
	confs := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		confs = append(confs, b.Confidence)
	}
	return confs, nil
}
