// Package inode implements the inode store (C4): conversion between an
// inode number and its byte offset in the inode table, and whole-image
// reads/writes of the fixed 256-byte slot, per spec §4.4.
package inode

import (
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// Ptr returns the byte offset of inode number ino's slot:
// 2048 + (ino - RootInode)*256.
func Ptr(ino uint64) uint64 {
	return block.InodeTableOffset + (ino-block.RootInode)*block.InodeSize
}

// Ino is the inverse of Ptr.
func Ino(ptr uint64) uint64 {
	return (ptr-block.InodeTableOffset)/block.InodeSize + block.RootInode
}

// Store reads and writes whole inode images on a device.
type Store struct {
	dev device.Device
}

// NewStore builds an inode store over dev.
func NewStore(dev device.Device) *Store {
	return &Store{dev: dev}
}

// Read loads and decodes the inode at number ino, validating that the
// image's self-referential Ino field matches.
func (s *Store) Read(ino uint64) (*block.Inode, error) {
	raw, err := s.dev.ReadLenAt(Ptr(ino), block.InodeSize)
	if err != nil {
		return nil, err
	}
	in, err := block.DecodeInode(raw)
	if err != nil {
		return nil, err
	}
	if in.Ino != ino {
		return nil, donkeyerr.New(donkeyerr.Corrupted, "inode slot %d holds mismatched ino %d", ino, in.Ino)
	}
	return in, nil
}

// Write serializes and stores in at its own Ino's slot.
func (s *Store) Write(in *block.Inode) error {
	return s.dev.WriteAt(in.Encode(), Ptr(in.Ino))
}
