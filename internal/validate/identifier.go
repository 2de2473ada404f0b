// Package validate provides the pure validators for Brazilian identifiers and dates.
// Validators never fail with an error: malformed input is simply invalid.
package validate

// digits strips every non-digit character from raw.
func digits(raw string) []int {
	out := make([]int, 0, len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			out = append(out, int(r-'0'))
		}
	}
	return out
}

// Digits returns raw with every non-digit character removed.
func Digits(raw string) string {
	d := digits(raw)
	b := make([]byte, len(d))
	for i, v := range d {
		b[i] = byte('0' + v)
	}
	return string(b)
}

func allSame(d []int) bool {
	for _, v := range d[1:] {
		if v != d[0] {
			return false
		}
	}
	return true
}

// CPF reports whether raw is a valid CPF.
// Formatting characters are ignored, so "111.444.777-35" and "11144477735" validate identically.
// Sequences of a single repeated digit are rejected even though their check digits match.
func CPF(raw string) bool {
	d := digits(raw)
	if len(d) != 11 || allSame(d) {
		return false
	}

	for i := 9; i <= 10; i++ {
		total := 0
		for j := 0; j < i; j++ {
			total += d[j] * ((i + 1) - j)
		}
		if d[i] != (total*10%11)%10 {
			return false
		}
	}
	return true
}

// CNPJ reports whether raw has the 14 digits of a CNPJ.
// Check digits are not verified; use CNPJChecksum for the full mod-11 check.
func CNPJ(raw string) bool {
	return len(digits(raw)) == 14
}

var (
	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// CNPJChecksum reports whether raw is a CNPJ whose two check digits are correct.
func CNPJChecksum(raw string) bool {
	d := digits(raw)
	if len(d) != 14 || allSame(d) {
		return false
	}
	return d[12] == cnpjCheckDigit(d[:12], cnpjFirstWeights) &&
		d[13] == cnpjCheckDigit(d[:13], cnpjSecondWeights)
}

func cnpjCheckDigit(d []int, weights []int) int {
	total := 0
	for i, v := range d {
		total += v * weights[i]
	}
	rem := total % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}
