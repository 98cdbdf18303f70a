package uvlc

// Fixed-point constants, cosine terms scaled by 1 << idctConstBits.
const (
	fix0298631336 = 2446
	fix0390180644 = 3196
	fix0541196100 = 4433
	fix0765366865 = 6270
	fix0899976223 = 7373
	fix1175875602 = 9633
	fix1501321110 = 12299
	fix1847759065 = 15137
	fix1961570560 = 16069
	fix2053119869 = 16819
	fix2562915447 = 20995
	fix3072711026 = 25172

	idctConstBits = 13
	idctPass1Bits = 1

	idctColumnShift = idctConstBits - idctPass1Bits
	idctRowShift    = idctConstBits + idctPass1Bits + 3
)

// idct transforms block in place from frequency to spatial domain.
// Columns or rows whose only non-zero term is the first one are broadcast
// directly; the result equals the full butterfly on those inputs.
func idct(block *[64]int) {
	var workspace [64]int

	// Transform columns
	for i := 0; i < 8; i++ {
		if block[1*8+i] == 0 && block[2*8+i] == 0 && block[3*8+i] == 0 && block[4*8+i] == 0 &&
			block[5*8+i] == 0 && block[6*8+i] == 0 && block[7*8+i] == 0 {
			dc := block[i] << idctPass1Bits
			for n := 0; n < 64; n += 8 {
				workspace[n+i] = dc
			}
			continue
		}

		idctColumn(block, &workspace, i)
	}

	// Transform rows
	for i := 0; i < 64; i += 8 {
		if workspace[i+1] == 0 && workspace[i+2] == 0 && workspace[i+3] == 0 && workspace[i+4] == 0 &&
			workspace[i+5] == 0 && workspace[i+6] == 0 && workspace[i+7] == 0 {
			dc := (workspace[i] + 1<<(idctRowShift-idctConstBits-1)) >> (idctRowShift - idctConstBits)
			for n := 0; n < 8; n++ {
				block[i+n] = dc
			}
			continue
		}

		idctRow(&workspace, block, i)
	}
}

// idctColumn runs the butterfly on column i of in, writing out with
// idctPass1Bits of extra precision.
func idctColumn(in, out *[64]int, i int) {
	z2 := in[2*8+i]
	z3 := in[6*8+i]
	z1 := (z2 + z3) * fix0541196100
	tmp2 := z1 - z3*fix1847759065
	tmp3 := z1 + z2*fix0765366865

	z2 = in[0*8+i]
	z3 = in[4*8+i]
	tmp0 := (z2 + z3) << idctConstBits
	tmp1 := (z2 - z3) << idctConstBits

	tmp10 := tmp0 + tmp3
	tmp13 := tmp0 - tmp3
	tmp11 := tmp1 + tmp2
	tmp12 := tmp1 - tmp2

	tmp0, tmp1, tmp2, tmp3 = idctOdd(in[7*8+i], in[5*8+i], in[3*8+i], in[1*8+i])

	const round = 1 << (idctColumnShift - 1)
	out[0*8+i] = (tmp10 + tmp3 + round) >> idctColumnShift
	out[7*8+i] = (tmp10 - tmp3 + round) >> idctColumnShift
	out[1*8+i] = (tmp11 + tmp2 + round) >> idctColumnShift
	out[6*8+i] = (tmp11 - tmp2 + round) >> idctColumnShift
	out[2*8+i] = (tmp12 + tmp1 + round) >> idctColumnShift
	out[5*8+i] = (tmp12 - tmp1 + round) >> idctColumnShift
	out[3*8+i] = (tmp13 + tmp0 + round) >> idctColumnShift
	out[4*8+i] = (tmp13 - tmp0 + round) >> idctColumnShift
}

// idctRow runs the butterfly on the row starting at i, removing all extra precision.
func idctRow(in, out *[64]int, i int) {
	z2 := in[i+2]
	z3 := in[i+6]
	z1 := (z2 + z3) * fix0541196100
	tmp2 := z1 - z3*fix1847759065
	tmp3 := z1 + z2*fix0765366865

	tmp0 := (in[i] + in[i+4]) << idctConstBits
	tmp1 := (in[i] - in[i+4]) << idctConstBits

	tmp10 := tmp0 + tmp3
	tmp13 := tmp0 - tmp3
	tmp11 := tmp1 + tmp2
	tmp12 := tmp1 - tmp2

	tmp0, tmp1, tmp2, tmp3 = idctOdd(in[i+7], in[i+5], in[i+3], in[i+1])

	const round = 1 << (idctRowShift - 1)
	out[i+0] = (tmp10 + tmp3 + round) >> idctRowShift
	out[i+7] = (tmp10 - tmp3 + round) >> idctRowShift
	out[i+1] = (tmp11 + tmp2 + round) >> idctRowShift
	out[i+6] = (tmp11 - tmp2 + round) >> idctRowShift
	out[i+2] = (tmp12 + tmp1 + round) >> idctRowShift
	out[i+5] = (tmp12 - tmp1 + round) >> idctRowShift
	out[i+3] = (tmp13 + tmp0 + round) >> idctRowShift
	out[i+4] = (tmp13 - tmp0 + round) >> idctRowShift
}

// idctOdd computes the odd part from terms 7, 5, 3 and 1.
func idctOdd(t0, t1, t2, t3 int) (int, int, int, int) {
	z1 := t0 + t3
	z2 := t1 + t2
	z3 := t0 + t2
	z4 := t1 + t3
	z5 := (z3 + z4) * fix1175875602

	t0 *= fix0298631336
	t1 *= fix2053119869
	t2 *= fix3072711026
	t3 *= fix1501321110
	z1 *= -fix0899976223
	z2 *= -fix2562915447
	z3 *= -fix1961570560
	z4 *= -fix0390180644

	z3 += z5
	z4 += z5

	t0 += z1 + z3
	t1 += z2 + z4
	t2 += z2 + z3
	t3 += z1 + z4

	return t0, t1, t2, t3
}
