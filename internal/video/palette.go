package video

// RGB is one displayable pixel color.
type RGB struct {
	R, G, B uint8
}

// paletteWords holds the VIC-II palette as the capture firmware ships it:
// 0xAABBGGRR words, one per palette index.
var paletteWords = [16]uint32{
	0xFF000000, // black
	0xFFEFEFEF, // white
	0xFF342F8D, // red
	0xFFCDD46A, // cyan
	0xFFA43598, // purple
	0xFF42B44C, // green
	0xFFB1292C, // blue
	0xFF5DEFEF, // yellow
	0xFF204E98, // orange
	0xFF00385B, // brown
	0xFF6D67D1, // light red
	0xFF4A4A4A, // dark grey
	0xFF7B7B7B, // grey
	0xFF93EF9F, // light green
	0xFFEF6A6D, // light blue
	0xFFB2B2B2, // light grey
}

// Palette is the fixed 16-color VIC-II palette, decoded once and read-only
// for the process lifetime.
var Palette = buildPalette()

func buildPalette() [16]RGB {
	var p [16]RGB
	for i, w := range paletteWords {
		p[i] = RGB{
			R: uint8(w & 0xFF),
			G: uint8((w >> 8) & 0xFF),
			B: uint8((w >> 16) & 0xFF),
		}
	}
	return p
}

// DecodeByte expands one packed byte into its two pixels. The low nibble is
// the left pixel, the high nibble the right.
func DecodeByte(b byte) (low, high RGB) {
	return Palette[b&0x0F], Palette[b>>4]
}

// DecodeLine expands one line of packed pixel bytes into dst as RGB
// triples. dst must hold at least 6*len(src) bytes.
func DecodeLine(dst, src []byte) {
	for i, b := range src {
		low, high := DecodeByte(b)
		o := i * 6
		dst[o] = low.R
		dst[o+1] = low.G
		dst[o+2] = low.B
		dst[o+3] = high.R
		dst[o+4] = high.G
		dst[o+5] = high.B
	}
}
