// Package depitem describes one directory entry captured by a directory
// scan: its name, the inode it pointed at when scanned, and a file-type
// hint used by the flag translator.
package depitem

// FileType is a coarse file-type hint, derived from a stat mode: the
// fstatat done by the directory scan, or a later fstat/fstatat.
type FileType int

const (
	// Unknown means the scanner could not classify the entry without an
	// extra stat call. Watch registration must not use Unknown as if it
	// were Regular.
	Unknown FileType = iota
	Regular
	Directory
	Symlink
	Fifo
	Socket
	BlockDevice
	CharDevice
)

// Item is one entry of a directory listing snapshot (spec's dep_item).
//
// Name is unique within the deplist.List that owns the Item; Inode may
// repeat across Items in the same list (hard links).
type Item struct {
	Name  string
	Inode uint64
	Type  FileType
}

// Note on the DI_PARENT sentinel from spec.md §3/§9: this package does not
// model it as a dep_item value. watch.Watch instead carries a userRequested
// bool, the alternative encoding spec.md §9 calls out explicitly ("A
// cleaner encoding is a boolean user_requested on the watch"). That keeps
// this package free of a value that exists only to make a close-rule
// invariant hold elsewhere.
