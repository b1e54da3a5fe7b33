package gate

import (
	"strconv"

	"github.com/spacemeshos/powgate/pow"
	"github.com/spacemeshos/powgate/sealing"
)

// SetupPayload carries the sealed telemetry. It is sent as a multipart form
// with the ciphertext in the "mouse" part and the nonce in the "iv" part.
type SetupPayload struct {
	Ciphertext string
	Nonce      string
}

func NewSetupPayload(p *sealing.SealedPayload) SetupPayload {
	enc := p.Encode()
	return SetupPayload{Ciphertext: enc.EncryptedData, Nonce: enc.Nonce}
}

// ValidationPayload echoes the challenge prefix with the counter in decimal text.
type ValidationPayload struct {
	Prefix  string `json:"prefix"`
	Counter string `json:"nonce"`
}

func NewValidationPayload(ch pow.Challenge, sol pow.Solution) ValidationPayload {
	return ValidationPayload{Prefix: ch.Prefix, Counter: strconv.FormatUint(sol.Counter, 10)}
}

type SolutionPayload struct {
	Counter uint64 `json:"nonce"`
	Digest  string `json:"hash"`
}

func NewSolutionPayload(sol pow.Solution) SolutionPayload {
	return SolutionPayload{Counter: sol.Counter, Digest: sol.Digest}
}

type keyResponse struct {
	Key string `json:"key"`
}
