package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of digits in a verification code.
const Length = 6

var codeSpace = big.NewInt(1_000_000)

// Generate returns a fresh zero-padded 6-digit verification code drawn
// uniformly from crypto/rand. A collision with the immediately prior code for
// the same session is tolerated; the session's generation counter still
// disambiguates the two issuances.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
