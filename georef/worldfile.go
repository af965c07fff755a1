package georef

import (
	"fmt"
	"os"
	"strconv"
)

// writeWorldFile writes an ESRI world file: the six affine parameters, one per line, in the order
// A, D, B, E, C, F. C and F are the center of the top-left pixel.
func writeWorldFile(path string, a Affine) error {
	var content string
	for _, v := range []float64{a.A, a.D, a.B, a.E, a.C, a.F} {
		content += strconv.FormatFloat(v, 'f', -1, 64) + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("error writing world file: %w", err)
	}
	return nil
}
