// Package model defines the content tree shared by the resolver, the
// orchestrator and the transfer worker.
//
// # ContentNode
//
// ContentNode is one folder or file of a resolved GoFile link:
//
//	root := model.NewFolder("f1", "⭐ Show S1",
//	    model.NewFile("a", "Episode 1.mkv", 100, "https://store/a"),
//	)
//	fmt.Println(root.Name, root.TotalSize()) // "⭐ Show S1" 100
//
// # FileJob
//
// Flatten converts a tree into the ordered list of file transfers:
//
//	jobs := model.Flatten(root, nil)
//	fmt.Println(jobs[0].RelPath) // "⭐ Show S1/Episode 1.mkv"
//
// # Names
//
// SanitizeName strips characters that are illegal on common filesystems
// while keeping the name readable. Nodes keep both forms: DisplayName for UI
// and Name for disk.
package model
