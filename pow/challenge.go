package pow

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spacemeshos/powgate/shared"
)

// MaxDifficulty is the number of hex characters in a digest; higher difficulties can never be met.
const MaxDifficulty = 2 * DigestSize

// Challenge is a proof-of-work puzzle: find a counter such that the digest of
// Prefix followed by the decimal counter starts with Difficulty '0' hex characters.
type Challenge struct {
	Prefix     string `json:"prefix"`
	Difficulty int    `json:"difficulty"`
}

func (ch Challenge) Validate() error {
	if ch.Difficulty < 0 {
		return shared.InvalidChallengeError{
			Param:  "difficulty",
			Value:  strconv.Itoa(ch.Difficulty),
			Reason: "must not be negative",
		}
	}
	if ch.Difficulty > MaxDifficulty {
		return shared.InvalidChallengeError{
			Param:  "difficulty",
			Value:  strconv.Itoa(ch.Difficulty),
			Reason: fmt.Sprintf("exceeds digest length of %d hex characters", MaxDifficulty),
		}
	}
	return nil
}

// ParseChallenge decodes a challenge as received from a gate, e.g. {"prefix":"xk29f","difficulty":4}.
// The difficulty has to be an integer literal; fractional or exponent forms are rejected.
func ParseChallenge(data []byte) (Challenge, error) {
	var raw struct {
		Prefix     *string          `json:"prefix"`
		Difficulty *json.RawMessage `json:"difficulty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	if raw.Prefix == nil {
		return Challenge{}, shared.InvalidChallengeError{Param: "prefix", Value: "<missing>", Reason: "required"}
	}
	if raw.Difficulty == nil {
		return Challenge{}, shared.InvalidChallengeError{Param: "difficulty", Value: "<missing>", Reason: "required"}
	}

	d, err := strconv.Atoi(string(*raw.Difficulty))
	if err != nil {
		return Challenge{}, shared.InvalidChallengeError{
			Param:  "difficulty",
			Value:  string(*raw.Difficulty),
			Reason: "not an integer",
		}
	}

	ch := Challenge{Prefix: *raw.Prefix, Difficulty: d}
	if err := ch.Validate(); err != nil {
		return Challenge{}, err
	}
	return ch, nil
}

// Solution is the lowest counter satisfying a Challenge together with its hex digest.
type Solution struct {
	Counter uint64 `json:"counter"`
	Digest  string `json:"digest"`
}
