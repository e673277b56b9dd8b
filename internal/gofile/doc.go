// Package gofile resolves GoFile links into content trees.
//
// # Links
//
// ExtractContentID accepts the usual link forms and bare identifiers:
//
//	id, err := gofile.ExtractContentID("https://gofile.io/d/abc123") // "abc123"
//
// # Resolving
//
// Resolver walks a folder recursively and returns an immutable tree:
//
//	r := gofile.NewResolver(client, gofile.DefaultOptions(), log)
//	root, err := r.Resolve(ctx, id, password)
//
// Passwords are never sent in clear; HashPassword produces the digest the
// API expects.
//
// # Authentication
//
// Two credentials are needed. An anonymous account token is created with
// POST /accounts and sent as a bearer token; the transfer worker also sends
// it as the accountToken cookie. A website token is scraped from the site's
// bootstrap script. It breaks whenever the site changes the script, and that
// failure surfaces as common.ErrAPI.
//
// # Wire format
//
// Responses are decoded into the dto package types and validated before
// being converted to model.ContentNode. Unexpected shapes are reported as
// common.ErrAPI rather than passed on.
package gofile
