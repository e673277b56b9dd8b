package model

import (
	"path"
	"strconv"
	"strings"
)

// FileJob is one file transfer produced by flattening a content tree.
type FileJob struct {
	// ID is the remote file identifier, used for incremental tracking.
	ID string

	// Name is the sanitized file name (last element of RelPath).
	Name string

	// RelPath is the slash-separated path relative to the task directory,
	// including the root folder name when the root is a folder.
	RelPath string

	// Size is the expected size in bytes, zero when unknown.
	Size int64

	// Link is the remote download URL.
	Link string
}

// FolderNameFunc maps a sanitized folder name to the local directory name
// that should be used for it.
type FolderNameFunc func(name string) string

// Flatten turns a content tree into an ordered list of file jobs.
//
// The tree is walked depth-first in child order, so the job order matches
// the remote listing. Exactly one job is produced per file node and every
// RelPath is unique: when two entries of the same folder sanitize to the same
// name, later ones get a " (2)", " (3)"... suffix before the extension.
//
// folderName, when non-nil, is applied to every folder name before it is
// used as a path element. It lets incremental sync keep using a directory
// whose remote folder has since been renamed.
//
// Example:
//
//	jobs := model.Flatten(root, nil)
//	for _, job := range jobs {
//	    fmt.Println(job.RelPath, job.Size)
//	}
func Flatten(root *ContentNode, folderName FolderNameFunc) []FileJob {
	if root == nil {
		return nil
	}
	if folderName == nil {
		folderName = func(name string) string { return name }
	}

	f := &flattener{folderName: folderName}
	if root.Kind == KindFile {
		f.addFile(root, "", map[string]struct{}{})
		return f.jobs
	}
	f.walk(root, "", map[string]struct{}{})
	return f.jobs
}

type flattener struct {
	folderName FolderNameFunc
	jobs       []FileJob
}

// walk adds the folder n below dir. used holds names already taken in dir.
func (f *flattener) walk(n *ContentNode, dir string, used map[string]struct{}) {
	name := uniqueName(f.folderName(n.Name), used)
	folderPath := path.Join(dir, name)

	taken := make(map[string]struct{}, len(n.Children))
	for _, child := range n.Children {
		if child.Kind == KindFolder {
			f.walk(child, folderPath, taken)
			continue
		}
		f.addFile(child, folderPath, taken)
	}
}

func (f *flattener) addFile(n *ContentNode, dir string, used map[string]struct{}) {
	name := uniqueName(n.Name, used)
	f.jobs = append(f.jobs, FileJob{
		ID:      n.ID,
		Name:    name,
		RelPath: path.Join(dir, name),
		Size:    n.Size,
		Link:    n.Link,
	})
}

// uniqueName returns name, or name with a numeric suffix, that is not yet in
// used, and marks it as used. Comparison is case-insensitive so the result is
// also unique on case-insensitive filesystems.
func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, ok := used[key]; !ok {
			used[key] = struct{}{}
			return candidate
		}
		candidate = stem + " (" + strconv.Itoa(i) + ")" + ext
	}
}
