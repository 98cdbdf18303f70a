package uvlc

// Widths of the two entropy code windows.
const (
	runBits   = 12
	levelBits = 15

	// maxPairBits is the longest run code followed by the longest level code.
	maxPairBits = runBits + levelBits
)

// runCode is one entry of the zero-run decode table.
// A zero length marks a bit pattern that is not a valid code.
type runCode struct {
	Length uint8
	Run    uint8
}

// levelCode is one entry of the coefficient level decode table.
type levelCode struct {
	Length uint8
	EOB    bool
	Value  int16
}

var (
	videoRunTable   = buildRunTable()
	videoLevelTable = buildLevelTable()
)

// buildRunTable precomputes the zero-run code for every 12-bit pattern:
//
//	1            run 0
//	01           run 1
//	0..01x..x    n zeros, a one, n-1 bits: run (1 << (n-1)) | x
func buildRunTable() *[1 << runBits]runCode {
	table := &[1 << runBits]runCode{}

	for data := range table {
		zeros := int(videoLeadingZeros[data>>(runBits-8)])
		length := zeros + 1

		extra := 0
		if zeros > 1 {
			extra = zeros - 1
		}

		if length+extra > runBits {
			continue
		}

		rest := (data << length) & (1<<runBits - 1)
		run := 0
		if zeros > 0 {
			run = 1<<extra | rest>>(runBits-extra)
		}

		table[data] = runCode{Length: uint8(length + extra), Run: uint8(run)}
	}

	return table
}

// buildLevelTable precomputes the level code for every 15-bit pattern:
//
//	1s           level 1
//	01           end of block
//	0..01x..xs   n zeros, a one, n-1 bits: level (1 << (n-1)) | x
//
// s is the sign bit, set for negative levels.
func buildLevelTable() *[1 << levelBits]levelCode {
	table := &[1 << levelBits]levelCode{}

	for data := range table {
		zeros := int(videoLeadingZeros[data>>(levelBits-8)])
		length := zeros + 1

		if zeros == 1 {
			table[data] = levelCode{Length: uint8(length), EOB: true}
			continue
		}

		extra := 0
		if zeros > 0 {
			extra = zeros - 1
		}

		if length+extra+1 > levelBits {
			continue
		}

		rest := (data << length) & (1<<levelBits - 1)
		value := 1<<extra | rest>>(levelBits-extra)

		rest = (rest << extra) & (1<<levelBits - 1)
		if rest>>(levelBits-1) != 0 {
			value = -value
		}

		table[data] = levelCode{Length: uint8(length + extra + 1), Value: int16(value)}
	}

	return table
}

// Count leading zeros of a byte; 8 for zero.
var videoLeadingZeros = [256]byte{
	8, 7, 6, 6, 5, 5, 5, 5, 4, 4, 4, 4, 4, 4, 4, 4,
	3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var videoZigZag = [64]byte{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

var videoInverseQuant = [64]byte{
	3, 5, 7, 9, 11, 13, 15, 17,
	5, 7, 9, 11, 13, 15, 17, 19,
	7, 9, 11, 13, 15, 17, 19, 21,
	9, 11, 13, 15, 17, 19, 21, 23,
	11, 13, 15, 17, 19, 21, 23, 25,
	13, 15, 17, 19, 21, 23, 25, 27,
	15, 17, 19, 21, 23, 25, 27, 29,
	17, 19, 21, 23, 25, 27, 29, 31,
}

// Position inside the 16x16 macroblock (row*16 + col) of each luma sample,
// indexed by block*64 + sample with blocks in top-left, top-right,
// bottom-left, bottom-right order.
var videoPixelPosition = [256]byte{
	0, 1, 2, 3, 4, 5, 6, 7,
	16, 17, 18, 19, 20, 21, 22, 23,
	32, 33, 34, 35, 36, 37, 38, 39,
	48, 49, 50, 51, 52, 53, 54, 55,
	64, 65, 66, 67, 68, 69, 70, 71,
	80, 81, 82, 83, 84, 85, 86, 87,
	96, 97, 98, 99, 100, 101, 102, 103,
	112, 113, 114, 115, 116, 117, 118, 119,

	8, 9, 10, 11, 12, 13, 14, 15,
	24, 25, 26, 27, 28, 29, 30, 31,
	40, 41, 42, 43, 44, 45, 46, 47,
	56, 57, 58, 59, 60, 61, 62, 63,
	72, 73, 74, 75, 76, 77, 78, 79,
	88, 89, 90, 91, 92, 93, 94, 95,
	104, 105, 106, 107, 108, 109, 110, 111,
	120, 121, 122, 123, 124, 125, 126, 127,

	128, 129, 130, 131, 132, 133, 134, 135,
	144, 145, 146, 147, 148, 149, 150, 151,
	160, 161, 162, 163, 164, 165, 166, 167,
	176, 177, 178, 179, 180, 181, 182, 183,
	192, 193, 194, 195, 196, 197, 198, 199,
	208, 209, 210, 211, 212, 213, 214, 215,
	224, 225, 226, 227, 228, 229, 230, 231,
	240, 241, 242, 243, 244, 245, 246, 247,

	136, 137, 138, 139, 140, 141, 142, 143,
	152, 153, 154, 155, 156, 157, 158, 159,
	168, 169, 170, 171, 172, 173, 174, 175,
	184, 185, 186, 187, 188, 189, 190, 191,
	200, 201, 202, 203, 204, 205, 206, 207,
	216, 217, 218, 219, 220, 221, 222, 223,
	232, 233, 234, 235, 236, 237, 238, 239,
	248, 249, 250, 251, 252, 253, 254, 255,
}

// Chroma sample (0--63) used for each luma sample, same indexing as videoPixelPosition.
var videoChromaUpsample = [256]byte{
	0, 0, 1, 1, 2, 2, 3, 3,
	0, 0, 1, 1, 2, 2, 3, 3,
	8, 8, 9, 9, 10, 10, 11, 11,
	8, 8, 9, 9, 10, 10, 11, 11,
	16, 16, 17, 17, 18, 18, 19, 19,
	16, 16, 17, 17, 18, 18, 19, 19,
	24, 24, 25, 25, 26, 26, 27, 27,
	24, 24, 25, 25, 26, 26, 27, 27,

	4, 4, 5, 5, 6, 6, 7, 7,
	4, 4, 5, 5, 6, 6, 7, 7,
	12, 12, 13, 13, 14, 14, 15, 15,
	12, 12, 13, 13, 14, 14, 15, 15,
	20, 20, 21, 21, 22, 22, 23, 23,
	20, 20, 21, 21, 22, 22, 23, 23,
	28, 28, 29, 29, 30, 30, 31, 31,
	28, 28, 29, 29, 30, 30, 31, 31,

	32, 32, 33, 33, 34, 34, 35, 35,
	32, 32, 33, 33, 34, 34, 35, 35,
	40, 40, 41, 41, 42, 42, 43, 43,
	40, 40, 41, 41, 42, 42, 43, 43,
	48, 48, 49, 49, 50, 50, 51, 51,
	48, 48, 49, 49, 50, 50, 51, 51,
	56, 56, 57, 57, 58, 58, 59, 59,
	56, 56, 57, 57, 58, 58, 59, 59,

	36, 36, 37, 37, 38, 38, 39, 39,
	36, 36, 37, 37, 38, 38, 39, 39,
	44, 44, 45, 45, 46, 46, 47, 47,
	44, 44, 45, 45, 46, 46, 47, 47,
	52, 52, 53, 53, 54, 54, 55, 55,
	52, 52, 53, 53, 54, 54, 55, 55,
	60, 60, 61, 61, 62, 62, 63, 63,
	60, 60, 61, 61, 62, 62, 63, 63,
}
