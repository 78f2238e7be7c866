// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cdap

import (
	"bytes"
	"encoding/gob"
)

// Codec (de)serializes nested CDAP objects (EnrollmentInfo, LowerFlowList,
// DFTSlice, NeighborCandidateList, ...) to and from bytes for embedding in
// Message.Body. The real deployment's codec talks the protobuf wire format
// the rest of the DIF speaks; that format is out of scope here (spec.md
// §1), so GobCodec stands in, grounded on the same encoding/gob pattern the
// teacher used internally for local state snapshots.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// GobCodec implements Codec with the stdlib encoding/gob format.
type GobCodec struct{}

// Marshal encodes v with encoding/gob.
func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes b into v with encoding/gob. v must be a pointer.
func (GobCodec) Unmarshal(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
