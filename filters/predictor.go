package filters

import (
	"errors"

	"github.com/idrisr/pepys/ir/raw"
)

// applyPredictor undoes the TIFF or PNG predictor declared in DecodeParms.
// Predictor 1 (or absent params) is a no-op. Cross-reference streams almost
// always use PNG Up (12), so this path matters for structured resolution.
func applyPredictor(data []byte, params *raw.Dict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor, ok := params.Int("Predictor")
	if !ok || predictor <= 1 {
		return data, nil
	}

	colors := int64(1)
	if v, ok := params.Int("Colors"); ok {
		colors = v
	}
	bpc := int64(8)
	if v, ok := params.Int("BitsPerComponent"); ok {
		bpc = v
	}
	columns := int64(1)
	if v, ok := params.Int("Columns"); ok {
		columns = v
	}

	rowLen := int((colors*bpc*columns + 7) / 8)
	if rowLen <= 0 {
		return nil, errors.New("predictor: invalid row length")
	}
	bpp := int((colors*bpc + 7) / 8)
	if bpp <= 0 {
		bpp = 1
	}

	if predictor == 2 {
		return applyTIFFPredictor(data, rowLen, bpp, int(bpc))
	}
	return applyPNGPredictor(data, rowLen, bpp)
}

func applyTIFFPredictor(data []byte, rowLen, bpp, bpc int) ([]byte, error) {
	if bpc != 8 {
		// Sub-byte TIFF prediction is vanishingly rare; pass through.
		return data, nil
	}
	out := append([]byte(nil), data...)
	for row := 0; row+rowLen <= len(out); row += rowLen {
		for i := bpp; i < rowLen; i++ {
			out[row+i] += out[row+i-bpp]
		}
	}
	return out, nil
}

func applyPNGPredictor(data []byte, rowLen, bpp int) ([]byte, error) {
	stride := rowLen + 1 // each row is prefixed with a filter type byte
	if len(data)%stride != 0 {
		return nil, errors.New("predictor: data length not a multiple of row size")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prior := make([]byte, rowLen)

	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		row := append([]byte(nil), data[r*stride+1:(r+1)*stride]...)
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prior[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				left := 0
				if i >= bpp {
					left = int(row[i-bpp])
				}
				row[i] += byte((left + int(prior[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prior[i-bpp]
				}
				row[i] += paeth(left, prior[i], upLeft)
			}
		default:
			return nil, errors.New("predictor: unknown PNG filter type")
		}
		out = append(out, row...)
		copy(prior, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
