package emu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// DefaultMemoryCapacity covers the 43-bit virtual address space of the
// 21264. Storage is allocated lazily, one page at a time.
const DefaultMemoryCapacity = 1 << 43

// ErrOutOfRange is returned for an access that does not fit in memory.
var ErrOutOfRange = errors.New("address out of range")

// Memory is sparse little-endian guest memory backed by an akita storage.
type Memory struct {
	storage  *mem.Storage
	capacity uint64
}

// NewMemory creates an empty memory of DefaultMemoryCapacity bytes.
func NewMemory() *Memory {
	return NewMemoryWithCapacity(DefaultMemoryCapacity)
}

// NewMemoryWithCapacity creates an empty memory of the given size.
func NewMemoryWithCapacity(capacity uint64) *Memory {
	return &Memory{storage: mem.NewStorage(capacity), capacity: capacity}
}

// Capacity returns the size of the address space in bytes.
func (m *Memory) Capacity() uint64 {
	return m.capacity
}

// Read returns size bytes starting at addr.
func (m *Memory) Read(addr uint64, size int) ([]byte, error) {
	if !m.contains(addr, uint64(size)) {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", size, addr, ErrOutOfRange)
	}

	data, err := m.storage.Read(addr, uint64(size))
	if err != nil {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", size, addr, err)
	}
	return data, nil
}

// Write stores data starting at addr.
func (m *Memory) Write(addr uint64, data []byte) error {
	if !m.contains(addr, uint64(len(data))) {
		return fmt.Errorf("write %d bytes at 0x%x: %w", len(data), addr, ErrOutOfRange)
	}

	if err := m.storage.Write(addr, data); err != nil {
		return fmt.Errorf("write %d bytes at 0x%x: %w", len(data), addr, err)
	}
	return nil
}

// contains reports whether [addr, addr+size) lies inside memory. The
// storage itself accepts accesses that start at its end or wrap around.
func (m *Memory) contains(addr, size uint64) bool {
	return addr < m.capacity && size <= m.capacity-addr
}

// ReadUint reads a little-endian value of size bytes (1, 2, 4 or 8).
func (m *Memory) ReadUint(addr uint64, size int) (uint64, error) {
	data, err := m.Read(addr, size)
	if err != nil {
		return 0, err
	}
	return decodeLE(data), nil
}

// WriteUint writes the low size bytes of value in little-endian order.
func (m *Memory) WriteUint(addr uint64, size int, value uint64) error {
	return m.Write(addr, encodeLE(value, size))
}

// ReadCode32 fetches an instruction word.
func (m *Memory) ReadCode32(addr uint64) (uint32, error) {
	v, err := m.ReadUint(addr, 4)
	return uint32(v), err
}

// Read64 reads a quadword, returning 0 for an address outside memory.
func (m *Memory) Read64(addr uint64) uint64 {
	v, _ := m.ReadUint(addr, 8)
	return v
}

// Write64 writes a quadword. Writes outside memory are dropped.
func (m *Memory) Write64(addr uint64, value uint64) {
	_ = m.WriteUint(addr, 8, value)
}

// Read32 reads a longword, returning 0 for an address outside memory.
func (m *Memory) Read32(addr uint64) uint32 {
	v, _ := m.ReadUint(addr, 4)
	return uint32(v)
}

// Write32 writes a longword. Writes outside memory are dropped.
func (m *Memory) Write32(addr uint64, value uint32) {
	_ = m.WriteUint(addr, 4, uint64(value))
}

// LoadProgram copies program into memory at addr.
func (m *Memory) LoadProgram(addr uint64, program []byte) error {
	return m.Write(addr, program)
}

// LoadWords writes instruction words consecutively from addr.
func (m *Memory) LoadWords(addr uint64, words ...uint32) error {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return m.Write(addr, buf)
}

func decodeLE(data []byte) uint64 {
	var v uint64
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}

func encodeLE(value uint64, size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(value >> (8 * i))
	}
	return buf
}
