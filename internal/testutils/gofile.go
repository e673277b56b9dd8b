// Package testutils provides a fake GoFile service for tests.
package testutils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/handiism/gofile-downloader/internal/gofile/dto"
)

// SiteToken is the website token served by the fake bootstrap script.
const SiteToken = "test-wt"

// Node describes one entry of the fake remote tree.
type Node struct {
	ID       string
	Name     string
	Folder   bool
	Data     []byte
	Password string
	Children []*Node
}

// Folder builds a folder node.
func Folder(id, name string, children ...*Node) *Node {
	return &Node{ID: id, Name: name, Folder: true, Children: children}
}

// File builds a file node whose content is size bytes of a repeating pattern.
func File(id, name string, size int) *Node {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &Node{ID: id, Name: name, Data: data}
}

// GoFile is an httptest server speaking enough of the GoFile API for the
// resolver and the transfer worker.
//
//	srv := testutils.NewGoFile(t, testutils.Folder("root", "Show",
//	    testutils.File("a", "A.mkv", 100),
//	))
//	opts := gofile.Options{APIURL: srv.URL, SiteURL: srv.URL}
type GoFile struct {
	*httptest.Server

	mu           sync.Mutex
	nodes        map[string]*Node
	parents      map[string]string
	tokens       map[string]bool
	issued       int
	failures     map[string]int
	requests     map[string]int
	contentCalls int
	chunkSize    int
	chunkDelay   time.Duration
	ignoreRange  bool
	scripts      map[string]bool
}

// NewGoFile starts a fake service serving roots. It is closed on test cleanup.
func NewGoFile(t testing.TB, roots ...*Node) *GoFile {
	t.Helper()

	g := &GoFile{
		nodes:     make(map[string]*Node),
		parents:   make(map[string]string),
		tokens:    make(map[string]bool),
		failures:  make(map[string]int),
		requests:  make(map[string]int),
		chunkSize: 4096,
		scripts:   map[string]bool{"config.js": true},
	}
	for _, root := range roots {
		g.add(root, "")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts", g.handleAccounts)
	mux.HandleFunc("GET /dist/js/{script}", g.handleScript)
	mux.HandleFunc("GET /contents/{id}", g.handleContents)
	mux.HandleFunc("GET /download/{id}/{name}", g.handleDownload)

	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Close)
	return g
}

func (g *GoFile) add(n *Node, parent string) {
	g.nodes[n.ID] = n
	g.parents[n.ID] = parent
	for _, child := range n.Children {
		g.add(child, n.ID)
	}
}

// SetTree replaces the node identified by n.ID, simulating a remote change.
func (g *GoFile) SetTree(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.add(n, g.parents[n.ID])
}

// ExpireTokens invalidates every issued account token.
func (g *GoFile) ExpireTokens() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = make(map[string]bool)
}

// TokensIssued returns the number of accounts created so far.
func (g *GoFile) TokensIssued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

// FailDownloads makes the next n downloads of file id fail with 503.
func (g *GoFile) FailDownloads(id string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[id] = n
}

// SlowDownloads makes downloads write chunk bytes at a time, pausing
// delay between writes.
func (g *GoFile) SlowDownloads(chunk int, delay time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chunkSize = chunk
	g.chunkDelay = delay
}

// IgnoreRange makes downloads always answer 200 with the full body.
func (g *GoFile) IgnoreRange() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ignoreRange = true
}

// DownloadRequests returns how many download requests file id received.
func (g *GoFile) DownloadRequests(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[id]
}

// ContentCalls returns how many contents requests were served.
func (g *GoFile) ContentCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.contentCalls
}

// Link returns the download URL of file id.
func (g *GoFile) Link(id string) string {
	g.mu.Lock()
	n := g.nodes[id]
	g.mu.Unlock()
	return g.URL + "/download/" + id + "/" + url.PathEscape(n.Name)
}

func (g *GoFile) handleAccounts(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.issued++
	token := "token-" + strconv.Itoa(g.issued)
	g.tokens[token] = true
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"data":   map[string]string{"id": "acc", "token": token},
	})
}

// ServeScripts sets which files under /dist/js/ carry the website token.
// By default only config.js does.
func (g *GoFile) ServeScripts(names ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts = make(map[string]bool, len(names))
	for _, name := range names {
		g.scripts[name] = true
	}
}

func (g *GoFile) handleScript(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	ok := g.scripts[r.PathValue("script")]
	g.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, "var appdata = {};\nappdata.wt = %q;\n", SiteToken)
}

func (g *GoFile) handleContents(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contentCalls++

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !g.tokens[token] {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error-auth"})
		return
	}
	if r.URL.Query().Get("wt") != SiteToken || r.Header.Get("X-Website-Token") != SiteToken {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error-notPremium"})
		return
	}

	n, ok := g.nodes[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "error-notFound", "data": map[string]any{}})
		return
	}

	content := g.content(n, true)
	if n.Password != "" {
		switch r.URL.Query().Get("password") {
		case "":
			content = &dto.Content{ID: n.ID, Type: dto.TypeFolder, Name: n.Name, PasswordStatus: dto.PasswordRequired}
		case hashPassword(n.Password):
			content.PasswordStatus = dto.PasswordOK
		default:
			content = &dto.Content{ID: n.ID, Type: dto.TypeFolder, Name: n.Name, PasswordStatus: dto.PasswordWrong}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": content})
}

// content renders n. Sub-folders are listed without their children, the
// way the real API does.
func (g *GoFile) content(n *Node, withChildren bool) *dto.Content {
	if !n.Folder {
		return &dto.Content{
			ID:   n.ID,
			Type: dto.TypeFile,
			Name: n.Name,
			Size: int64(len(n.Data)),
			Link: g.URL + "/download/" + n.ID + "/" + url.PathEscape(n.Name),
		}
	}

	c := &dto.Content{ID: n.ID, Type: dto.TypeFolder, Name: n.Name, Code: n.ID}
	if withChildren {
		c.Children = make(map[string]*dto.Content, len(n.Children))
		for _, child := range n.Children {
			c.ChildrenIDs = append(c.ChildrenIDs, child.ID)
			c.Children[child.ID] = g.content(child, false)
		}
	}
	return c
}

func (g *GoFile) handleDownload(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	id := r.PathValue("id")
	g.requests[id]++
	n, ok := g.nodes[id]
	fail := g.failures[id] > 0
	if fail {
		g.failures[id]--
	}
	chunk, delay, ignoreRange := g.chunkSize, g.chunkDelay, g.ignoreRange
	g.mu.Unlock()

	if !ok || n.Folder {
		http.NotFound(w, r)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Cookie"), "accountToken=") {
		http.Error(w, "missing account cookie", http.StatusForbidden)
		return
	}
	if fail {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
		return
	}

	data := n.Data
	status := http.StatusOK
	if rng := r.Header.Get("Range"); rng != "" && !ignoreRange {
		start, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
		if err != nil || start >= len(data) {
			w.Header().Set("Content-Range", "bytes */"+strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(data)-1, len(data)))
		data = data[start:]
		status = http.StatusPartialContent
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)

	flusher, _ := w.(http.Flusher)
	for len(data) > 0 {
		n := min(chunk, len(data))
		if _, err := w.Write(data[:n]); err != nil {
			return
		}
		data = data[n:]
		if flusher != nil {
			flusher.Flush()
		}
		if delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
