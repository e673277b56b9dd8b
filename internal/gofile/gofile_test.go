package gofile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
	apihttp "github.com/handiism/gofile-downloader/internal/http"
	"github.com/handiism/gofile-downloader/internal/model"
	"github.com/handiism/gofile-downloader/internal/retry"
	"github.com/handiism/gofile-downloader/internal/testutils"
)

func TestExtractContentID(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{"full url", "https://gofile.io/d/abc123", "abc123", false},
		{"trailing slash", "https://gofile.io/d/abc123/", "abc123", false},
		{"no scheme", "gofile.io/d/abc123", "abc123", false},
		{"www host", "https://www.gofile.io/d/Xy-9_z", "Xy-9_z", false},
		{"bare id", "abc123", "abc123", false},
		{"surrounding spaces", "  abc123 ", "abc123", false},
		{"empty", "", "", true},
		{"other host", "https://example.com/d/abc123", "", true},
		{"missing id", "https://gofile.io/d/", "", true},
		{"wrong path", "https://gofile.io/x/abc123", "", true},
		{"bad bare id", "abc 123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractContentID(tt.link)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractContentID(%q) error = %v, wantErr %v", tt.link, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, common.ErrInvalidURL) {
				t.Errorf("error = %v, want ErrInvalidURL", err)
			}
			if got != tt.want {
				t.Errorf("ExtractContentID(%q) = %q, want %q", tt.link, got, tt.want)
			}
		})
	}
}

func TestExtractSiteToken(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    string
		wantErr bool
	}{
		{"assignment", `var appdata = {}; appdata.wt = "4fd6sg89d7s6";`, "4fd6sg89d7s6", false},
		{"single quotes", `appdata.wt='abc';`, "abc", false},
		{"object literal", `const cfg = {wt: "xyz", other: 1}`, "xyz", false},
		{"missing", `console.log("nothing here")`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractSiteToken(tt.script)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractSiteToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractSiteToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	// sha256("secret")
	want := "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	if got := HashPassword("secret"); got != want {
		t.Errorf("HashPassword() = %q, want %q", got, want)
	}
}

func newTestResolver(srv *testutils.GoFile) *Resolver {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(apihttp.NewClient(apihttp.DefaultOptions()), Options{
		APIURL:   srv.URL,
		SiteURL:  srv.URL,
		MaxDepth: 4,
		Retry:    retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, log)
}

func TestResolver_Resolve(t *testing.T) {
	srv := testutils.NewGoFile(t, testutils.Folder("root", "⭐ Show: S1",
		testutils.File("a", "A.mkv", 100),
		testutils.Folder("sub", "Extras",
			testutils.File("b", "B?.mkv", 300),
			testutils.Folder("deep", "Deep"),
		),
	))

	root, err := newTestResolver(srv).Resolve(context.Background(), "root", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if root.DisplayName != "⭐ Show: S1" || root.Name != "⭐ Show S1" {
		t.Errorf("root names = %q / %q", root.DisplayName, root.Name)
	}
	if root.TotalSize() != 400 || root.FileCount() != 2 {
		t.Errorf("TotalSize=%d FileCount=%d", root.TotalSize(), root.FileCount())
	}
	if len(root.Children) != 2 || root.Children[0].ID != "a" || root.Children[1].ID != "sub" {
		t.Fatalf("children out of order: %+v", root.Children)
	}

	sub := root.Children[1]
	if sub.Kind != model.KindFolder || len(sub.Children) != 2 {
		t.Fatalf("sub = %+v", sub)
	}
	b := sub.Children[0]
	if b.Name != "B.mkv" || b.Size != 300 || b.Link == "" {
		t.Errorf("b = %+v", b)
	}
	if srv.ContentCalls() != 3 {
		t.Errorf("ContentCalls() = %d, want 3", srv.ContentCalls())
	}
}

func TestResolver_SingleFile(t *testing.T) {
	srv := testutils.NewGoFile(t, testutils.File("f", "movie.mkv", 10))

	root, err := newTestResolver(srv).Resolve(context.Background(), "f", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if root.Kind != model.KindFile || root.Size != 10 {
		t.Errorf("root = %+v", root)
	}
}

func TestResolver_Password(t *testing.T) {
	folder := testutils.Folder("locked", "Locked", testutils.File("a", "A", 1))
	folder.Password = "hunter2"
	srv := testutils.NewGoFile(t, folder)
	r := newTestResolver(srv)

	_, err := r.Resolve(context.Background(), "locked", "")
	if !errors.Is(err, common.ErrPasswordRequired) {
		t.Errorf("no password: error = %v, want ErrPasswordRequired", err)
	}
	if errors.Is(err, common.ErrAPI) {
		t.Errorf("no password: error must not be ErrAPI: %v", err)
	}

	_, err = r.Resolve(context.Background(), "locked", "wrong")
	if !errors.Is(err, common.ErrPasswordIncorrect) {
		t.Errorf("wrong password: error = %v, want ErrPasswordIncorrect", err)
	}
	if errors.Is(err, common.ErrAPI) {
		t.Errorf("wrong password: error must not be ErrAPI: %v", err)
	}

	root, err := r.Resolve(context.Background(), "locked", "hunter2")
	if err != nil {
		t.Fatalf("right password: error = %v", err)
	}
	if root.FileCount() != 1 {
		t.Errorf("FileCount() = %d, want 1", root.FileCount())
	}
}

func TestResolver_NotFound(t *testing.T) {
	srv := testutils.NewGoFile(t)

	_, err := newTestResolver(srv).Resolve(context.Background(), "missing", "")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestResolver_RefreshesRejectedToken(t *testing.T) {
	srv := testutils.NewGoFile(t, testutils.Folder("root", "Root", testutils.File("a", "A", 1)))
	r := newTestResolver(srv)

	if _, err := r.Resolve(context.Background(), "root", ""); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	srv.ExpireTokens()

	if _, err := r.Resolve(context.Background(), "root", ""); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if srv.TokensIssued() != 2 {
		t.Errorf("TokensIssued() = %d, want 2", srv.TokensIssued())
	}

	token, err := r.Token(context.Background())
	if err != nil || token != "token-2" {
		t.Errorf("Token() = %q, %v", token, err)
	}
}

func TestResolver_MaxDepth(t *testing.T) {
	deep := testutils.File("leaf", "leaf", 1)
	for i := 6; i >= 0; i-- {
		deep = testutils.Folder("d"+string(rune('0'+i)), "level", deep)
	}
	srv := testutils.NewGoFile(t, deep)

	_, err := newTestResolver(srv).Resolve(context.Background(), "d0", "")
	if !errors.Is(err, common.ErrAPI) {
		t.Errorf("error = %v, want ErrAPI", err)
	}
}

func TestResolver_SiteTokenUnavailable(t *testing.T) {
	srv := testutils.NewGoFile(t, testutils.Folder("root", "Root"))
	r := newTestResolver(srv)
	r.opts.SiteTokenPath = "/missing.js"

	_, err := r.Resolve(context.Background(), "root", "")
	if !errors.Is(err, common.ErrAPI) {
		t.Errorf("error = %v, want ErrAPI", err)
	}
}

func TestResolver_SiteTokenLegacyScript(t *testing.T) {
	srv := testutils.NewGoFile(t, testutils.Folder("root", "Root"))
	srv.ServeScripts("global.js")

	wt, err := newTestResolver(srv).siteTokenFor(context.Background())
	if err != nil || wt != testutils.SiteToken {
		t.Fatalf("siteTokenFor() = %q, %v", wt, err)
	}

	srv.ServeScripts()
	r := newTestResolver(srv)
	_, err = r.siteTokenFor(context.Background())
	if !errors.Is(err, common.ErrAPI) {
		t.Errorf("error = %v, want ErrAPI", err)
	}
}

func TestResolver_SiteTokenIsCached(t *testing.T) {
	srv := testutils.NewGoFile(t, testutils.Folder("root", "Root"))
	r := newTestResolver(srv)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	wt, err := r.siteTokenFor(context.Background())
	if err != nil || wt != testutils.SiteToken {
		t.Fatalf("siteTokenFor() = %q, %v", wt, err)
	}

	r.opts.SiteTokenPath = "/missing.js"
	if _, err := r.siteTokenFor(context.Background()); err != nil {
		t.Errorf("cached token should be reused: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := r.siteTokenFor(context.Background()); !errors.Is(err, common.ErrAPI) {
		t.Errorf("expired token should be fetched again: %v", err)
	}
}
