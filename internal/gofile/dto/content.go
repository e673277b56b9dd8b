package dto

import (
	"fmt"
	"sort"

	"github.com/handiism/gofile-downloader/internal/model"
)

// Content types as reported by the API.
const (
	TypeFolder = "folder"
	TypeFile   = "file"
)

// Password states reported for protected content.
const (
	PasswordOK       = "passwordOk"
	PasswordRequired = "passwordRequired"
	PasswordWrong    = "passwordWrong"
)

// Content is the data of GET /contents/{id}, and also the shape of each
// entry of a folder's children map.
//
// Sub-folders listed inside a parent usually come without their own
// children; the resolver fetches them separately.
type Content struct {
	ID             string              `json:"id"`
	Type           string              `json:"type"`
	Name           string              `json:"name"`
	Code           string              `json:"code"`
	Size           int64               `json:"size"`
	Link           string              `json:"link"`
	MD5            string              `json:"md5"`
	PasswordStatus string              `json:"passwordStatus"`
	ChildrenIDs    []string            `json:"childrenIds"`
	Children       map[string]*Content `json:"children"`
}

// IsFolder reports whether the entry is a folder.
func (c *Content) IsFolder() bool {
	return c.Type == TypeFolder
}

// HasChildren reports whether the children of a folder were included
// in the response.
func (c *Content) HasChildren() bool {
	return c.Children != nil
}

// Validate checks the fields the resolver relies on.
func (c *Content) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("content has no id")
	}
	switch c.Type {
	case TypeFolder:
	case TypeFile:
		if c.Link == "" {
			return fmt.Errorf("file %s has no download link", c.ID)
		}
		if c.Size < 0 {
			return fmt.Errorf("file %s has negative size", c.ID)
		}
	default:
		return fmt.Errorf("content %s has unknown type %q", c.ID, c.Type)
	}
	if c.Name == "" && c.Code == "" {
		return fmt.Errorf("content %s has no name", c.ID)
	}
	return nil
}

// DisplayName returns the name, falling back to the short code.
func (c *Content) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Code
}

// OrderedChildren returns the children in listing order.
//
// The children map has no order of its own; childrenIds gives the order
// when present. Children missing from childrenIds follow, sorted by name
// and then ID so the result is stable.
func (c *Content) OrderedChildren() []*Content {
	if len(c.Children) == 0 {
		return nil
	}

	ordered := make([]*Content, 0, len(c.Children))
	placed := make(map[string]bool, len(c.Children))
	for _, id := range c.ChildrenIDs {
		if child, ok := c.Children[id]; ok && child != nil && !placed[id] {
			if child.ID == "" {
				child.ID = id
			}
			ordered = append(ordered, child)
			placed[id] = true
		}
	}

	var rest []*Content
	for id, child := range c.Children {
		if child == nil || placed[id] {
			continue
		}
		if child.ID == "" {
			child.ID = id
		}
		rest = append(rest, child)
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Name != rest[j].Name {
			return rest[i].Name < rest[j].Name
		}
		return rest[i].ID < rest[j].ID
	})

	return append(ordered, rest...)
}

// ToNode converts a validated entry into a model node. children is only
// used for folders.
func (c *Content) ToNode(children []*model.ContentNode) *model.ContentNode {
	if c.Type == TypeFile {
		return model.NewFile(c.ID, c.DisplayName(), c.Size, c.Link)
	}
	return model.NewFolder(c.ID, c.DisplayName(), children...)
}
