package pow

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSolution = errors.New("invalid proof of work solution")

// Verify checks that sol answers ch: the digest must match the recomputed one and meet the difficulty.
func Verify(ch Challenge, sol Solution) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	expected := Digest(ch.Prefix, sol.Counter)
	if sol.Digest != expected {
		return fmt.Errorf("%w: digest mismatch for counter %d; expected: %s, given: %s",
			ErrInvalidSolution, sol.Counter, expected, sol.Digest)
	}
	if !strings.HasPrefix(sol.Digest, strings.Repeat("0", ch.Difficulty)) {
		return fmt.Errorf("%w: digest %s has fewer than %d leading zeros", ErrInvalidSolution, sol.Digest, ch.Difficulty)
	}
	return nil
}
