package block

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// Extended attributes for one inode are serialized into a single data
// block as a sequence of length-prefixed (name, value) pairs, terminated
// by a zero-length name sentinel, mirroring the directory-entry stream's
// length-prefix-then-sentinel idiom in §4.7. Designed fresh per §4.6/§12:
// no surviving original_source revision implements xattrs.

// EncodeXattrEntry writes one (name, value) xattr record.
func EncodeXattrEntry(w io.Writer, name string, value []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(value))); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

// EncodeXattrEndSentinel writes the zero-length-name record that
// terminates an xattr stream.
func EncodeXattrEndSentinel(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, uint16(0))
}

// EncodeXattrMap serializes an entire xattr map (in map iteration order is
// not guaranteed; callers that need stable output should sort first) into
// a single block-sized buffer, failing with Corrupted if it doesn't fit.
func EncodeXattrMap(m map[string][]byte, blockSize uint64, order []string) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, name := range order {
		if err := EncodeXattrEntry(buf, name, m[name]); err != nil {
			return nil, err
		}
	}
	if err := EncodeXattrEndSentinel(buf); err != nil {
		return nil, err
	}
	if uint64(buf.Len()) > blockSize {
		return nil, donkeyerr.New(donkeyerr.Corrupted, "xattr block overflow: %d bytes exceeds block size %d", buf.Len(), blockSize)
	}
	out := make([]byte, blockSize)
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeXattrMap parses a block-sized xattr stream back into a map and the
// name order in which entries appeared.
func DecodeXattrMap(data []byte) (m map[string][]byte, order []string, err error) {
	m = map[string][]byte{}
	r := bufio.NewReader(bytes.NewReader(data))
	for {
		var nameLen uint16
		if err = binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode xattr name length")
		}
		if nameLen == 0 {
			return m, order, nil
		}
		if nameLen > MaxNameLength {
			return nil, nil, donkeyerr.New(donkeyerr.Corrupted, "xattr name length %d exceeds %d", nameLen, MaxNameLength)
		}
		nameBuf := make([]byte, nameLen)
		if _, err = io.ReadFull(r, nameBuf); err != nil {
			return nil, nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode xattr name")
		}
		var valueLen uint32
		if err = binary.Read(r, binary.LittleEndian, &valueLen); err != nil {
			return nil, nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode xattr value length")
		}
		valueBuf := make([]byte, valueLen)
		if _, err = io.ReadFull(r, valueBuf); err != nil {
			return nil, nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode xattr value")
		}
		name := string(nameBuf)
		m[name] = valueBuf
		order = append(order, name)
	}
}
