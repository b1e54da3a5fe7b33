package sealing

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/spacemeshos/powgate/shared"
	"github.com/spacemeshos/powgate/telemetry"
)

// Canonicalizer turns a trajectory into the exact byte string that gets sealed.
// Implementations must be stable: equal trajectories always yield equal bytes.
type Canonicalizer interface {
	Name() string
	Marshal(tr telemetry.Trajectory) ([]byte, error)
	Unmarshal(data []byte) (telemetry.Trajectory, error)
}

// JSON encodes a trajectory as whitespace-free JSON with keys in x, y, t order.
// This is the format gates expect.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(tr telemetry.Trajectory) ([]byte, error) {
	if tr == nil {
		tr = telemetry.Trajectory{}
	}
	b, err := json.Marshal(tr)
	if err != nil {
		return nil, shared.EncodingError{Format: "json", Err: err}
	}
	return b, nil
}

func (JSON) Unmarshal(data []byte) (telemetry.Trajectory, error) {
	var tr telemetry.Trajectory
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode json trajectory: %w", err)
	}
	return tr, nil
}

// CBOR encodes a trajectory with the core deterministic encoding of RFC 8949.
// Map keys follow that encoding's bytewise order, so samples are written as
// t, x, y rather than the x, y, t order of JSON.
type CBOR struct{}

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: invalid core deterministic options: %v", err))
	}
	return em
}()

func (CBOR) Name() string { return "cbor" }

func (CBOR) Marshal(tr telemetry.Trajectory) ([]byte, error) {
	if tr == nil {
		tr = telemetry.Trajectory{}
	}
	b, err := cborEncMode.Marshal(tr)
	if err != nil {
		return nil, shared.EncodingError{Format: "cbor", Err: err}
	}
	return b, nil
}

func (CBOR) Unmarshal(data []byte) (telemetry.Trajectory, error) {
	var tr telemetry.Trajectory
	if err := cbor.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode cbor trajectory: %w", err)
	}
	return tr, nil
}

// CanonicalizerByName resolves the names accepted on the command line.
func CanonicalizerByName(name string) (Canonicalizer, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}
