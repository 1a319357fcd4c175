package xstat

import (
	"fmt"
	"time"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/hashing"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// record is the value stored in the extended attribute. Digest and Magic
// are only trusted while the file's mtime still equals ModTime.
type record struct {
	UUID    []byte       `cbor:"1,keyasint"`
	Digest  []byte       `cbor:"2,keyasint,omitempty"`
	ModTime int64        `cbor:"3,keyasint,omitempty"` // unix nanoseconds
	Magic   appifi.Magic `cbor:"4,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("xstat: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("xstat: CBOR decoder initialization failed: " + err.Error())
	}
}

func newRecord() *record {
	id := uuid.New()
	return &record{UUID: id[:]}
}

func (r *record) marshal() ([]byte, error) {
	return encMode.Marshal(r)
}

func unmarshalRecord(data []byte) (*record, error) {
	var r record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding xstat record: %w", err)
	}
	if _, err := uuid.FromBytes(r.UUID); err != nil {
		return nil, fmt.Errorf("decoding xstat record: %w", err)
	}
	if r.Digest != nil && len(r.Digest) != hashing.Size {
		return nil, fmt.Errorf("decoding xstat record: digest is %d bytes", len(r.Digest))
	}
	return &r, nil
}

func (r *record) id() uuid.UUID {
	id, _ := uuid.FromBytes(r.UUID)
	return id
}

// current reports whether the cached fields describe content with mtime.
func (r *record) current(mtime time.Time) bool {
	return r.ModTime != 0 && r.ModTime == mtime.UnixNano()
}

func (r *record) digest(mtime time.Time) *hashing.Digest {
	if r.Digest == nil || !r.current(mtime) {
		return nil
	}
	d, err := hashing.DigestFromBytes(r.Digest)
	if err != nil {
		return nil
	}
	return &d
}
