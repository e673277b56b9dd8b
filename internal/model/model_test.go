package model

import (
	"fmt"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.mkv", "normal-file.mkv"},
		{"file:with:colons.mkv", "filewithcolons.mkv"},
		{"file<with>brackets.mkv", "filewithbrackets.mkv"},
		{"file/with\\slashes.mkv", "filewithslashes.mkv"},
		{"file|with|pipes.mkv", "filewithpipes.mkv"},
		{"file?with*wildcards.mkv", "filewithwildcards.mkv"},
		{"file\"with\"quotes.mkv", "filewithquotes.mkv"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"trailing spaces   ", "trailing spaces"},
		{"  leading spaces", "leading spaces"},
		{"⭐NEW FILES in Show S1 [10]", "⭐NEW FILES in Show S1 [10]"},
		{"CON", "_CON"},
		{"nul.txt", "_nul.txt"},
		{"", "unnamed"},
		{"???", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeName_LongName(t *testing.T) {
	name := strings.Repeat("⭐", 200)
	got := SanitizeName(name)
	if len(got) > maxNameBytes {
		t.Errorf("len(SanitizeName) = %d, want <= %d", len(got), maxNameBytes)
	}
	if !strings.HasPrefix(name, got) {
		t.Errorf("SanitizeName cut inside a rune: %q", got)
	}
}

func TestContentNode_TotalSize(t *testing.T) {
	root := NewFolder("root", "Root",
		NewFile("a", "a.bin", 100, "https://x/a"),
		NewFolder("sub", "Sub",
			NewFile("b", "b.bin", 300, "https://x/b"),
			NewFolder("empty", "Empty"),
		),
	)

	if got := root.TotalSize(); got != 400 {
		t.Errorf("TotalSize() = %d, want 400", got)
	}
	if got := root.FileCount(); got != 2 {
		t.Errorf("FileCount() = %d, want 2", got)
	}
	if got := root.Children[0].TotalSize(); got != 100 {
		t.Errorf("file TotalSize() = %d, want 100", got)
	}
	if got := strings.Join(root.Folders(), ","); got != "Root,Sub,Empty" {
		t.Errorf("Folders() = %q", got)
	}
}

func TestKind_String(t *testing.T) {
	if KindFolder.String() != "folder" || KindFile.String() != "file" {
		t.Errorf("unexpected kind names %q %q", KindFolder, KindFile)
	}
}

func TestFlatten_FolderTree(t *testing.T) {
	root := NewFolder("root", "Show: S1",
		NewFile("a", "A.mkv", 100, "https://x/a"),
		NewFolder("sub", "Extras",
			NewFile("b", "B.mkv", 300, "https://x/b"),
		),
	)

	jobs := Flatten(root, nil)
	want := []string{"Show S1/A.mkv", "Show S1/Extras/B.mkv"}
	if len(jobs) != len(want) {
		t.Fatalf("len(jobs) = %d, want %d", len(jobs), len(want))
	}
	for i, job := range jobs {
		if job.RelPath != want[i] {
			t.Errorf("jobs[%d].RelPath = %q, want %q", i, job.RelPath, want[i])
		}
	}
	if jobs[1].ID != "b" || jobs[1].Size != 300 || jobs[1].Link != "https://x/b" {
		t.Errorf("jobs[1] = %+v", jobs[1])
	}
}

func TestFlatten_SingleFile(t *testing.T) {
	jobs := Flatten(NewFile("a", "movie?.mkv", 10, "https://x/a"), nil)
	if len(jobs) != 1 || jobs[0].RelPath != "movie.mkv" {
		t.Fatalf("Flatten(file) = %+v", jobs)
	}
}

func TestFlatten_DuplicateNames(t *testing.T) {
	root := NewFolder("root", "Root",
		NewFile("1", "clip.mp4", 1, "l1"),
		NewFile("2", "clip?.mp4", 1, "l2"),
		NewFile("3", "CLIP.mp4", 1, "l3"),
		NewFolder("d1", "dir"),
		NewFolder("d2", "dir:",
			NewFile("4", "clip.mp4", 1, "l4"),
		),
	)

	jobs := Flatten(root, nil)
	got := make([]string, len(jobs))
	for i, job := range jobs {
		got[i] = job.RelPath
	}
	want := "Root/clip.mp4,Root/clip (2).mp4,Root/CLIP (3).mp4,Root/dir (2)/clip.mp4"
	if strings.Join(got, ",") != want {
		t.Errorf("Flatten paths = %q, want %q", strings.Join(got, ","), want)
	}
}

func TestFlatten_FolderNameHook(t *testing.T) {
	root := NewFolder("root", "Show S1 [10]",
		NewFile("a", "A.mkv", 1, "l"),
	)
	jobs := Flatten(root, func(name string) string {
		if name == "Show S1 [10]" {
			return "⭐NEW FILES in Show S1 [10]"
		}
		return name
	})
	if jobs[0].RelPath != "⭐NEW FILES in Show S1 [10]/A.mkv" {
		t.Errorf("RelPath = %q", jobs[0].RelPath)
	}
}

// Every generated tree must flatten to one job per file with unique paths.
func TestFlatten_CountAndUniqueness(t *testing.T) {
	names := []string{"a.txt", "A.txt", "a?.txt", "b", "b.", "c.tar.gz"}

	for depth := 1; depth <= 4; depth++ {
		for width := 1; width <= len(names); width++ {
			root := buildTree(depth, width, names, "n")
			jobs := Flatten(root, nil)

			if len(jobs) != root.FileCount() {
				t.Fatalf("depth=%d width=%d: %d jobs, %d files", depth, width, len(jobs), root.FileCount())
			}

			seen := make(map[string]bool, len(jobs))
			for _, job := range jobs {
				key := strings.ToLower(job.RelPath)
				if seen[key] {
					t.Fatalf("depth=%d width=%d: duplicate path %q", depth, width, job.RelPath)
				}
				seen[key] = true
			}
		}
	}
}

func buildTree(depth, width int, names []string, prefix string) *ContentNode {
	folder := NewFolder(prefix, "dir")
	for i := 0; i < width; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		folder.Children = append(folder.Children, NewFile(id, names[i%len(names)], int64(i), "l"))
		if depth > 1 {
			folder.Children = append(folder.Children, buildTree(depth-1, width, names, id))
		}
	}
	return folder
}
