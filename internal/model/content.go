package model

// Kind distinguishes folders from files in a content tree.
type Kind int

const (
	// KindFolder is a container node. It has children and no link.
	KindFolder Kind = iota

	// KindFile is a leaf node that can be downloaded.
	KindFile
)

// String returns the remote API spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// ContentNode is one entry of a resolved remote content tree.
//
// Nodes are built once by the resolver from a snapshot of the remote state
// and are read-only afterwards. A file node never has children; a folder
// node never has a link.
//
// Example:
//
//	root, _ := resolver.Resolve(ctx, "abc123", "")
//	fmt.Println(root.DisplayName, root.TotalSize())
//	for _, child := range root.Children {
//	    fmt.Println(child.Kind, child.Name)
//	}
type ContentNode struct {
	// ID is the opaque remote identifier (UUID-form or short code).
	ID string

	// DisplayName is the raw name as shown by the remote service.
	// It may contain emoji or characters that are illegal on disk.
	DisplayName string

	// Name is DisplayName made safe for use as a file or folder name.
	Name string

	// Kind tells whether the node is a folder or a file.
	Kind Kind

	// Size is the file size in bytes. Zero for folders and for files
	// whose size the remote did not report.
	Size int64

	// Link is the download URL of a file node.
	Link string

	// Children holds the ordered entries of a folder node.
	Children []*ContentNode
}

// NewFolder creates a folder node. The sanitized name is derived from displayName.
func NewFolder(id, displayName string, children ...*ContentNode) *ContentNode {
	return &ContentNode{
		ID:          id,
		DisplayName: displayName,
		Name:        SanitizeName(displayName),
		Kind:        KindFolder,
		Children:    children,
	}
}

// NewFile creates a file node. The sanitized name is derived from displayName.
func NewFile(id, displayName string, size int64, link string) *ContentNode {
	return &ContentNode{
		ID:          id,
		DisplayName: displayName,
		Name:        SanitizeName(displayName),
		Kind:        KindFile,
		Size:        size,
		Link:        link,
	}
}

// IsFolder reports whether the node is a folder.
func (n *ContentNode) IsFolder() bool {
	return n.Kind == KindFolder
}

// TotalSize returns the size of a file, or the sum of all descendant file
// sizes for a folder. It is computed on every call.
func (n *ContentNode) TotalSize() int64 {
	if n.Kind == KindFile {
		return n.Size
	}
	var total int64
	for _, child := range n.Children {
		total += child.TotalSize()
	}
	return total
}

// FileCount returns the number of file nodes in the subtree rooted at n.
func (n *ContentNode) FileCount() int {
	if n.Kind == KindFile {
		return 1
	}
	count := 0
	for _, child := range n.Children {
		count += child.FileCount()
	}
	return count
}

// Folders returns the sanitized names of every folder in the subtree,
// including n itself, in depth-first order.
func (n *ContentNode) Folders() []string {
	if n.Kind != KindFolder {
		return nil
	}
	names := []string{n.Name}
	for _, child := range n.Children {
		names = append(names, child.Folders()...)
	}
	return names
}
