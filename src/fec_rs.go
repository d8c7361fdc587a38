package uhfmac

// SPDX-FileCopyrightText: 2002 Phil Karn, KA9Q
// SPDX-FileCopyrightText: The uhfmac Authors

// Reed-Solomon codec over GF(2^symsize), general form.
//
// The table construction, the LFSR encoder and the Berlekamp-Massey /
// Chien search / Forney decoder follow Phil Karn's char-sized RS library,
// which may be used under the terms of the GNU General Public License (GPL).
//
// Everything here works on full nn symbol blocks.  Shortened codes are
// handled by the caller, which pads with leading zeros.

import (
	"errors"
	"fmt"
)

type reedSolomon struct {
	mm       int   // Bits per symbol.
	nn       int   // Symbols per block (= (1<<mm)-1).
	alphaTo  []int // Log lookup table, antilog form.
	indexOf  []int // Antilog lookup table, log form.
	genpoly  []int // Generator polynomial, index form.
	nroots   int   // Number of generator roots = number of parity symbols.
	fcr      int   // First consecutive root, index form.
	prim     int   // Primitive element, index form.
	iprim    int   // prim-th root of 1, index form.
	a0       int   // Log of zero, "minus infinity" in index form.
	maxCheck int
}

var errRSParameters = errors.New("invalid Reed-Solomon parameters")

/*-------------------------------------------------------------
 *
 * Name:	newReedSolomon
 *
 * Purpose:	Build the Galois field tables and generator polynomial.
 *
 * Inputs:	symsize	- Symbol size, bits (1-8).
 *		gfpoly	- Field generator polynomial coefficients.
 *		fcr	- First root of RS code generator polynomial, index form.
 *		prim	- Primitive element to generate polynomial roots.
 *		nroots	- RS code generator polynomial degree (number of roots).
 *
 *--------------------------------------------------------------*/

func newReedSolomon(symsize, gfpoly, fcr, prim, nroots int) (*reedSolomon, error) {
	if symsize < 1 || symsize > 8 {
		return nil, fmt.Errorf("%w: symbol size %d", errRSParameters, symsize)
	}

	if fcr < 0 || fcr >= (1<<symsize) || prim <= 0 || prim >= (1<<symsize) || nroots <= 0 || nroots >= (1<<symsize) {
		return nil, fmt.Errorf("%w: fcr %d prim %d nroots %d", errRSParameters, fcr, prim, nroots)
	}

	var rs = &reedSolomon{ //nolint:exhaustruct
		mm:     symsize,
		nn:     (1 << symsize) - 1,
		fcr:    fcr,
		prim:   prim,
		nroots: nroots,
	}
	rs.a0 = rs.nn
	rs.maxCheck = nroots / 2

	rs.alphaTo = make([]int, rs.nn+1)
	rs.indexOf = make([]int, rs.nn+1)

	// Generate Galois field lookup tables
	rs.indexOf[0] = rs.a0 // log(zero) = -inf
	rs.alphaTo[rs.a0] = 0 // alpha**-inf = 0
	var sr = 1
	for i := range rs.nn {
		rs.indexOf[sr] = i
		rs.alphaTo[i] = sr
		sr <<= 1
		if sr&(1<<symsize) != 0 {
			sr ^= gfpoly
		}
		sr &= rs.nn
	}
	if sr != 1 {
		return nil, fmt.Errorf("%w: field generator polynomial %#x is not primitive", errRSParameters, gfpoly)
	}

	// Find prim-th root of 1, used in decoding
	var iprim = 1
	for iprim%prim != 0 {
		iprim += rs.nn
	}
	rs.iprim = iprim / prim

	// Form RS code generator polynomial from its roots
	rs.genpoly = make([]int, nroots+1)
	rs.genpoly[0] = 1
	for i, root := 0, fcr*prim; i < nroots; i, root = i+1, root+prim {
		rs.genpoly[i+1] = 1

		// Multiply genpoly[] by  @**(root + x)
		for j := i; j > 0; j-- {
			if rs.genpoly[j] != 0 {
				rs.genpoly[j] = rs.genpoly[j-1] ^ rs.alphaTo[rs.modnn(rs.indexOf[rs.genpoly[j]]+root)]
			} else {
				rs.genpoly[j] = rs.genpoly[j-1]
			}
		}
		// genpoly[0] can never be zero
		rs.genpoly[0] = rs.alphaTo[rs.modnn(rs.indexOf[rs.genpoly[0]]+root)]
	}

	// Convert genpoly[] to index form for quicker encoding
	for i := range rs.genpoly {
		rs.genpoly[i] = rs.indexOf[rs.genpoly[i]]
	}

	return rs, nil
}

// modnn reduces x modulo nn without a division.
func (rs *reedSolomon) modnn(x int) int {
	for x >= rs.nn {
		x -= rs.nn
		x = (x >> rs.mm) + (x & rs.nn)
	}

	return x
}

// encode computes the nroots parity symbols for nn-nroots data symbols.
func (rs *reedSolomon) encode(data []byte, parity []byte) {
	Assert(len(data) == rs.nn-rs.nroots)
	Assert(len(parity) == rs.nroots)

	clear(parity)

	for i := range data {
		var feedback = rs.indexOf[int(data[i]^parity[0])]

		if feedback != rs.a0 { // feedback term is non-zero
			for j := 1; j < rs.nroots; j++ {
				parity[j] ^= byte(rs.alphaTo[rs.modnn(feedback+rs.genpoly[rs.nroots-j])])
			}
		}

		// Shift
		copy(parity, parity[1:])

		if feedback != rs.a0 {
			parity[rs.nroots-1] = byte(rs.alphaTo[rs.modnn(feedback+rs.genpoly[0])])
		} else {
			parity[rs.nroots-1] = 0
		}
	}
}

/*-------------------------------------------------------------
 *
 * Name:	decode
 *
 * Purpose:	Correct a received block in place.
 *
 * Inputs:	block	- nn symbols, data followed by parity.
 *
 * Returns:	Number of symbols corrected and their positions in
 *		block, or -1 if the block could not be corrected.
 *
 *--------------------------------------------------------------*/

func (rs *reedSolomon) decode(block []byte) (int, []int) {
	Assert(len(block) == rs.nn)

	var nroots = rs.nroots
	var nn = rs.nn
	var a0 = rs.a0

	// Form the syndromes; i.e., evaluate data(x) at roots of g(x)
	var s = make([]int, nroots)
	for i := range s {
		s[i] = int(block[0])
	}

	for j := 1; j < nn; j++ {
		for i := range nroots {
			if s[i] == 0 {
				s[i] = int(block[j])
			} else {
				s[i] = int(block[j]) ^ rs.alphaTo[rs.modnn(rs.indexOf[s[i]]+(rs.fcr+i)*rs.prim)]
			}
		}
	}

	// Convert syndromes to index form, checking for nonzero condition
	var synError = 0
	for i := range s {
		synError |= s[i]
		s[i] = rs.indexOf[s[i]]
	}

	if synError == 0 {
		// If syndrome is zero, data[] is a codeword and there are no
		// errors to correct.
		return 0, nil
	}

	var lambda = make([]int, nroots+1)
	var b = make([]int, nroots+1)
	var t = make([]int, nroots+1)

	lambda[0] = 1
	for i := range b {
		b[i] = rs.indexOf[lambda[i]]
	}

	// Begin Berlekamp-Massey algorithm to determine error locator polynomial
	var el = 0
	for r := 1; r <= nroots; r++ {
		// Compute discrepancy at the r-th step in poly-form
		var discr = 0
		for i := range r {
			if lambda[i] != 0 && s[r-i-1] != a0 {
				discr ^= rs.alphaTo[rs.modnn(rs.indexOf[lambda[i]]+s[r-i-1])]
			}
		}
		discr = rs.indexOf[discr] // Index form

		if discr == a0 {
			// B(x) <-- x*B(x)
			copy(b[1:], b[:nroots])
			b[0] = a0
			continue
		}

		// T(x) <-- lambda(x) - discr*x*b(x)
		t[0] = lambda[0]
		for i := range nroots {
			if b[i] != a0 {
				t[i+1] = lambda[i+1] ^ rs.alphaTo[rs.modnn(discr+b[i])]
			} else {
				t[i+1] = lambda[i+1]
			}
		}

		if 2*el <= r-1 {
			el = r - el
			// B(x) <-- inv(discr) * lambda(x)
			for i := range b {
				if lambda[i] == 0 {
					b[i] = a0
				} else {
					b[i] = rs.modnn(rs.indexOf[lambda[i]] - discr + nn)
				}
			}
		} else {
			// B(x) <-- x*B(x)
			copy(b[1:], b[:nroots])
			b[0] = a0
		}

		copy(lambda, t)
	}

	// Convert lambda to index form and compute deg(lambda(x))
	var degLambda = 0
	for i := range lambda {
		lambda[i] = rs.indexOf[lambda[i]]
		if lambda[i] != a0 {
			degLambda = i
		}
	}

	if degLambda == 0 || degLambda > rs.maxCheck {
		return -1, nil
	}

	// Find roots of the error locator polynomial by Chien search
	var reg = make([]int, nroots+1)
	copy(reg[1:], lambda[1:])

	var root = make([]int, 0, degLambda)
	var loc = make([]int, 0, degLambda)

	for i, k := 1, rs.iprim-1; i <= nn; i, k = i+1, rs.modnn(k+rs.iprim) {
		var q = 1 // lambda[0] is always 0
		for j := degLambda; j > 0; j-- {
			if reg[j] != a0 {
				reg[j] = rs.modnn(reg[j] + j)
				q ^= rs.alphaTo[reg[j]]
			}
		}

		if q != 0 {
			continue // Not a root
		}

		// store root (index-form) and error location number
		root = append(root, i)
		loc = append(loc, k)

		// If we've already found max possible roots, abort the search
		// to save time
		if len(root) == degLambda {
			break
		}
	}

	if len(root) != degLambda {
		// deg(lambda) unequal to number of roots => uncorrectable
		// error detected
		return -1, nil
	}

	// Compute err evaluator poly omega(x) = s(x)*lambda(x) (modulo
	// x**nroots). in index form. Also find deg(omega).
	var omega = make([]int, nroots+1)
	var degOmega = 0
	for i := range nroots {
		var tmp = 0
		for j := min(degLambda, i); j >= 0; j-- {
			if s[i-j] != a0 && lambda[j] != a0 {
				tmp ^= rs.alphaTo[rs.modnn(s[i-j]+lambda[j])]
			}
		}
		if tmp != 0 {
			degOmega = i
		}
		omega[i] = rs.indexOf[tmp]
	}
	omega[nroots] = a0

	// Compute error values in poly-form. num1 = omega(inv(X(l))), num2 =
	// inv(X(l))**(fcr-1) and den = lambda_pr(inv(X(l))) all in poly-form
	for j := len(root) - 1; j >= 0; j-- {
		var num1 = 0
		for i := degOmega; i >= 0; i-- {
			if omega[i] != a0 {
				num1 ^= rs.alphaTo[rs.modnn(omega[i]+i*root[j])]
			}
		}

		var num2 = rs.alphaTo[rs.modnn(root[j]*(rs.fcr-1)+nn)]

		// lambda[i+1] for i even is the formal derivative lambda_pr of lambda[i]
		var den = 0
		for i := min(degLambda, nroots-1) &^ 1; i >= 0; i -= 2 {
			if lambda[i+1] != a0 {
				den ^= rs.alphaTo[rs.modnn(lambda[i+1]+i*root[j])]
			}
		}

		if den == 0 {
			return -1, nil
		}

		// Apply error to data
		if num1 != 0 {
			block[loc[j]] ^= byte(rs.alphaTo[rs.modnn(rs.indexOf[num1]+rs.indexOf[num2]+nn-rs.indexOf[den])])
		}
	}

	return len(root), loc
}
