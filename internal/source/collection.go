// Package source defines the clip collection abstraction: one directory of
// motion-capture files, one clip per file.
package source

// Collection is a set of clip files sharing a bone structure.
type Collection interface {
	// Name is the collection identity, used to name output artifacts.
	Name() string
	// Root is the absolute collection directory.
	Root() string
	// ListClipNames returns the clip identities in enumeration order.
	ListClipNames() ([]string, error)
	// ClipPath returns the file path of the clip called name.
	ClipPath(name string) (string, error)
	// Checksum returns the hex SHA-256 of the clip file called name.
	Checksum(name string) (string, error)
}
