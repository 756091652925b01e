package block

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// ValidateName enforces the 256-byte name-length limit shared by directory
// entries and extended attributes, per §4.8.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return donkeyerr.New(donkeyerr.NameTooLong, "name %q exceeds %d bytes", name, MaxNameLength)
	}
	return nil
}

// EncodeDirEntry writes one (ino, name) directory record: a u64 ino
// followed by a length-prefixed name, per §4.7.
func EncodeDirEntry(w io.Writer, ino uint64, name string) error {
	if err := binary.Write(w, binary.LittleEndian, ino); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

// EncodeDirEndSentinel writes the record that terminates a directory
// entry stream.
func EncodeDirEndSentinel(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, uint64(DirEndSentinel))
}

// DecodeDirEntry reads one directory record. end is true and no further
// fields are valid once the sentinel has been read.
func DecodeDirEntry(r *bufio.Reader) (ino uint64, name string, end bool, err error) {
	if err = binary.Read(r, binary.LittleEndian, &ino); err != nil {
		return 0, "", false, err
	}
	if ino == DirEndSentinel {
		return 0, "", true, nil
	}
	if ino < RootInode {
		return 0, "", false, donkeyerr.New(donkeyerr.Corrupted, "invalid directory entry ino %d", ino)
	}
	var nameLen uint16
	if err = binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return 0, "", false, err
	}
	buf := make([]byte, nameLen)
	if _, err = io.ReadFull(r, buf); err != nil {
		return 0, "", false, err
	}
	return ino, string(buf), false, nil
}
