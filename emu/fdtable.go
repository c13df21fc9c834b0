package emu

import (
	"io"
	"os"
	"sync"
)

// FileDescriptor is an open guest file descriptor. Standard streams have
// no host file and go through the executor's readers and writers.
type FileDescriptor struct {
	HostFile *os.File
	Path     string
	Flags    int
}

// FDTable maps guest file descriptors to host files.
type FDTable struct {
	mu     sync.Mutex
	fds    map[uint64]*FileDescriptor
	nextFD uint64
}

// NewFDTable creates a table with descriptors 0, 1 and 2 open.
func NewFDTable() *FDTable {
	return &FDTable{
		fds: map[uint64]*FileDescriptor{
			0: {Path: "stdin"},
			1: {Path: "stdout"},
			2: {Path: "stderr"},
		},
		nextFD: 3,
	}
}

// Open opens a host file and returns its new descriptor.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	hostFile, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &FileDescriptor{HostFile: hostFile, Path: path, Flags: flags}

	return fd, nil
}

// Close closes a descriptor. Closing a standard stream only forgets it.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	entry, ok := t.fds[fd]
	delete(t.fds, fd)
	t.mu.Unlock()

	if !ok {
		return os.ErrInvalid
	}
	if entry.HostFile != nil {
		return entry.HostFile.Close()
	}
	return nil
}

// Get returns the descriptor entry if it is open.
func (t *FDTable) Get(fd uint64) (*FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.fds[fd]
	return entry, ok
}

// IsOpen reports whether fd is open.
func (t *FDTable) IsOpen(fd uint64) bool {
	_, ok := t.Get(fd)
	return ok
}

func (t *FDTable) hostFile(fd uint64) (*os.File, error) {
	entry, ok := t.Get(fd)
	if !ok || entry.HostFile == nil {
		return nil, os.ErrInvalid
	}
	return entry.HostFile, nil
}

// Read reads from a host-backed descriptor.
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	f, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.Read(buf)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// Write writes to a host-backed descriptor.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	f, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	return f.Write(buf)
}

// Seek sets the file position of a host-backed descriptor.
func (t *FDTable) Seek(fd uint64, offset int64, whence int) (int64, error) {
	f, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	return f.Seek(offset, whence)
}

// CloseAll closes every host file.
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for fd, entry := range t.fds {
		if entry.HostFile != nil {
			_ = entry.HostFile.Close()
		}
		delete(t.fds, fd)
	}
}
