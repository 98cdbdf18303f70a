package uvlc

// GrayPayload encodes a picture of cols x rows macroblocks with every DC term set to dc.
// It uses format VGA at resolution 1.
func GrayPayload(cols, rows, dc int, number uint32) []byte {
	p := grayPicture(cols, rows, dc)
	p.number = number

	return p.encode()
}

// BadTrailerPayload is GrayPayload with a corrupt end code.
func BadTrailerPayload(cols, rows, dc int) []byte {
	p := grayPicture(cols, rows, dc)
	p.trailer = 0x3e

	return p.encode()
}
