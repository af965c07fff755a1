package georef

import (
	"bufio"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"math"
	"sort"
)

// TIFF field types
const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// TIFF and GeoTIFF tags
const (
	tagImageWidth                = 256
	tagImageLength               = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagStripOffsets              = 273
	tagSamplesPerPixel           = 277
	tagRowsPerStrip              = 278
	tagStripByteCounts           = 279
	tagPlanarConfiguration       = 284
	tagExtraSamples              = 338
	tagModelPixelScale           = 33550
	tagModelTiepoint             = 33922
	tagGeoKeyDirectory           = 34735
)

// GeoKey and field values
const (
	keyGTModelType      = 1024
	keyGTRasterType     = 1025
	keyProjectedCSType  = 3072
	modelTypeProjected  = 1
	rasterPixelIsArea   = 1
	epsgWebMercator     = 3857
	photometricMinBlack = 1
	photometricRGB      = 2
	extraSampleUnassoc  = 2
)

const headerSize = 8

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shorts(vs ...uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return b
}

func longs(vs ...uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func doubles(vs ...float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

func shortEntry(tag uint16, vs ...uint16) ifdEntry {
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vs)), data: shorts(vs...)}
}

func longEntry(tag uint16, vs ...uint32) ifdEntry {
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(vs)), data: longs(vs...)}
}

func doubleEntry(tag uint16, vs ...float64) ifdEntry {
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(vs)), data: doubles(vs...)}
}

// writeGeoTIFF writes img as a little endian, uncompressed, single strip, 8 bit GeoTIFF with the
// given number of bands (1 gray, 3 RGB or 4 RGBA). The raster is georeferenced in EPSG:3857 by a
// tiepoint at raster (0, 0) and a pixel scale, as RasterPixelIsArea so readers recover a itself as
// the geotransform. Rotated transforms are not supported.
func writeGeoTIFF(w io.Writer, img image.Image, bands int, a Affine) error {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	stripSize := uint32(width * height * bands)

	bitsPerSample := make([]uint16, bands)
	for i := range bitsPerSample {
		bitsPerSample[i] = 8
	}
	photometric := uint16(photometricRGB)
	if bands == 1 {
		photometric = photometricMinBlack
	}

	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(width)),
		longEntry(tagImageLength, uint32(height)),
		shortEntry(tagBitsPerSample, bitsPerSample...),
		shortEntry(tagCompression, 1),
		shortEntry(tagPhotometricInterpretation, photometric),
		longEntry(tagStripOffsets, 0),
		shortEntry(tagSamplesPerPixel, uint16(bands)),
		longEntry(tagRowsPerStrip, uint32(height)),
		longEntry(tagStripByteCounts, stripSize),
		shortEntry(tagPlanarConfiguration, 1),
		doubleEntry(tagModelPixelScale, a.A, -a.E, 0),
		doubleEntry(tagModelTiepoint, 0, 0, 0, a.C, a.F, 0),
		shortEntry(tagGeoKeyDirectory,
			1, 1, 0, 3,
			keyGTModelType, 0, 1, modelTypeProjected,
			keyGTRasterType, 0, 1, rasterPixelIsArea,
			keyProjectedCSType, 0, 1, epsgWebMercator,
		),
	}
	if bands == 4 {
		entries = append(entries, shortEntry(tagExtraSamples, extraSampleUnassoc))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// layout: header, IFD, values that don't fit in an entry, pixels
	ifdSize := uint32(2 + 12*len(entries) + 4)
	offset := headerSize + ifdSize
	valueOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			valueOffsets[i] = offset
			offset += uint32(len(e.data))
		}
	}
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			entries[i].data = longs(offset)
		}
	}

	bw := bufio.NewWriter(w)
	header := []byte{'I', 'I', 42, 0}
	header = binary.LittleEndian.AppendUint32(header, headerSize)
	if _, err := bw.Write(header); err != nil {
		return err
	}

	ifd := binary.LittleEndian.AppendUint16(nil, uint16(len(entries)))
	for i, e := range entries {
		ifd = binary.LittleEndian.AppendUint16(ifd, e.tag)
		ifd = binary.LittleEndian.AppendUint16(ifd, e.typ)
		ifd = binary.LittleEndian.AppendUint32(ifd, e.count)
		if len(e.data) > 4 {
			ifd = binary.LittleEndian.AppendUint32(ifd, valueOffsets[i])
			continue
		}
		value := make([]byte, 4)
		copy(value, e.data)
		ifd = append(ifd, value...)
	}
	ifd = binary.LittleEndian.AppendUint32(ifd, 0) // no next IFD
	if _, err := bw.Write(ifd); err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.data) > 4 {
			if _, err := bw.Write(e.data); err != nil {
				return err
			}
		}
	}

	if err := writePixels(bw, img, bands); err != nil {
		return err
	}
	return bw.Flush()
}

func writePixels(w *bufio.Writer, img image.Image, bands int) error {
	bounds := img.Bounds()
	row := make([]byte, 0, bounds.Dx()*bands)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row = row[:0]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			switch bands {
			case 1:
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				row = append(row, g.Y)
			case 3:
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				row = append(row, c.R, c.G, c.B)
			default:
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				row = append(row, c.R, c.G, c.B, c.A)
			}
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// bandCount is 1 for gray images, 4 for images with transparency and 3 otherwise.
func bandCount(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3
	}
	return 4
}
