package gofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/handiism/gofile-downloader/internal/gofile/dto"
	apihttp "github.com/handiism/gofile-downloader/internal/http"
	"github.com/handiism/gofile-downloader/internal/model"
	"github.com/handiism/gofile-downloader/internal/retry"
)

// Options configures a Resolver.
type Options struct {
	// APIURL is the base of the JSON API.
	// Default: https://api.gofile.io
	APIURL string

	// SiteURL is the base of the website serving the bootstrap script.
	// Default: https://gofile.io
	SiteURL string

	// SiteTokenPath is the path of the script holding the website token.
	// Default: /dist/js/config.js
	SiteTokenPath string

	// SiteTokenTTL is how long a scraped website token is reused.
	// Default: 1h
	SiteTokenTTL time.Duration

	// MaxDepth bounds folder nesting. The root is depth 0.
	// Default: 32
	MaxDepth int

	// Retry is applied to every API call.
	Retry retry.Policy
}

// LegacySiteTokenPath is the older home of the website token. It is tried
// when SiteTokenPath does not yield one.
const LegacySiteTokenPath = "/dist/js/global.js"

// DefaultOptions returns the options for the public GoFile service.
func DefaultOptions() Options {
	return Options{
		APIURL:        "https://api.gofile.io",
		SiteURL:       "https://gofile.io",
		SiteTokenPath: "/dist/js/config.js",
		SiteTokenTTL:  time.Hour,
		MaxDepth:      32,
		Retry:         retry.DefaultPolicy(),
	}
}

// Resolver turns a content identifier into a tree of model.ContentNode.
//
// A Resolver holds two process-wide credentials: an anonymous account
// token, kept until the API rejects it with 401, and the website token
// scraped from the site script, kept for SiteTokenTTL. Both are safe to
// share between concurrent Resolve calls.
//
// Example usage:
//
//	r := gofile.NewResolver(client, gofile.DefaultOptions(), log)
//
//	root, err := r.Resolve(ctx, "abc123", "")
//	switch {
//	case errors.Is(err, common.ErrPasswordRequired):
//	    // ask the user for a password
//	case err != nil:
//	    return err
//	}
//	for _, job := range model.Flatten(root, nil) {
//	    fmt.Println(job.RelPath)
//	}
type Resolver struct {
	client *apihttp.Client
	opts   Options
	log    *slog.Logger
	now    func() time.Time

	tokenMu sync.Mutex
	token   string

	siteMu     sync.Mutex
	siteToken  string
	siteExpiry time.Time
}

// NewResolver creates a Resolver. Zero fields of opts take their defaults.
func NewResolver(client *apihttp.Client, opts Options, log *slog.Logger) *Resolver {
	def := DefaultOptions()
	if opts.APIURL == "" {
		opts.APIURL = def.APIURL
	}
	if opts.SiteURL == "" {
		opts.SiteURL = def.SiteURL
	}
	if opts.SiteTokenPath == "" {
		opts.SiteTokenPath = def.SiteTokenPath
	}
	if opts.SiteTokenTTL <= 0 {
		opts.SiteTokenTTL = def.SiteTokenTTL
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")

	return &Resolver{
		client: client,
		opts:   opts,
		log:    log.With(slog.String("component", "resolver")),
		now:    time.Now,
	}
}

// Token returns the cached account token, creating an anonymous account
// on first use. Failures wrap common.ErrAuth.
func (r *Resolver) Token(ctx context.Context) (string, error) {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()

	if r.token != "" {
		return r.token, nil
	}

	var account dto.Account
	err := r.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
		var env dto.Envelope
		if err := r.client.PostJSON(ctx, r.opts.APIURL+"/accounts", nil, nil, &env); err != nil {
			return err
		}
		if !env.OK() {
			return fmt.Errorf("account creation returned status %q", env.Status)
		}
		if err := env.Decode(&account); err != nil {
			return err
		}
		return account.Validate()
	})
	if err != nil {
		return "", fmt.Errorf("%w: cannot create account: %v", common.ErrAuth, err)
	}

	r.token = account.Token
	r.log.Debug("Account token acquired")
	return r.token, nil
}

// invalidateToken drops token if it is still the cached one.
func (r *Resolver) invalidateToken(token string) {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()
	if r.token == token {
		r.token = ""
	}
}

// siteTokenFor returns the website token, scraping it again once the
// cached value has expired.
func (r *Resolver) siteTokenFor(ctx context.Context) (string, error) {
	r.siteMu.Lock()
	defer r.siteMu.Unlock()

	if r.siteToken != "" && r.now().Before(r.siteExpiry) {
		return r.siteToken, nil
	}

	var token string
	paths := []string{r.opts.SiteTokenPath}
	if r.opts.SiteTokenPath != LegacySiteTokenPath {
		paths = append(paths, LegacySiteTokenPath)
	}

	err := r.opts.Retry.Do(ctx, func(ctx context.Context, _ int) error {
		var errs []error
		for _, path := range paths {
			script, err := r.client.GetString(ctx, r.opts.SiteURL+path)
			if err == nil {
				token, err = extractSiteToken(script)
			}
			if err == nil {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		return errors.Join(errs...)
	})
	if err != nil {
		return "", fmt.Errorf("%w: cannot obtain site token: %v", common.ErrAPI, err)
	}

	r.siteToken = token
	r.siteExpiry = r.now().Add(r.opts.SiteTokenTTL)
	return token, nil
}

// Resolve fetches the content tree rooted at contentID.
//
// password may be empty. Protected content then fails with
// common.ErrPasswordRequired; a wrong password fails with
// common.ErrPasswordIncorrect. Other failures wrap common.ErrAuth,
// common.ErrNotFound or common.ErrAPI.
func (r *Resolver) Resolve(ctx context.Context, contentID, password string) (*model.ContentNode, error) {
	var hash string
	if password != "" {
		hash = HashPassword(password)
	}

	w := &walk{r: r, hash: hash, visited: make(map[string]bool)}
	root, err := w.folder(ctx, contentID, 0)
	if err != nil {
		return nil, err
	}

	r.log.Info("Content resolved",
		slog.String("content", contentID),
		slog.String("name", root.DisplayName),
		slog.Int("files", root.FileCount()),
		slog.Int64("bytes", root.TotalSize()),
	)
	return root, nil
}

// walk holds the state of a single Resolve call.
type walk struct {
	r       *Resolver
	hash    string
	visited map[string]bool
}

// folder fetches id from the API and builds its subtree.
func (w *walk) folder(ctx context.Context, id string, depth int) (*model.ContentNode, error) {
	if depth > w.r.opts.MaxDepth {
		return nil, fmt.Errorf("%w: folder %s exceeds maximum depth %d", common.ErrAPI, id, w.r.opts.MaxDepth)
	}
	if w.visited[id] {
		return nil, fmt.Errorf("%w: folder %s appears twice in the tree", common.ErrAPI, id)
	}
	w.visited[id] = true

	content, err := w.r.fetch(ctx, id, w.hash)
	if err != nil {
		return nil, err
	}
	return w.build(ctx, content, depth)
}

// build converts content, fetching sub-folders whose children were not
// part of the parent listing.
func (w *walk) build(ctx context.Context, content *dto.Content, depth int) (*model.ContentNode, error) {
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrAPI, err)
	}
	if !content.IsFolder() {
		return content.ToNode(nil), nil
	}

	var children []*model.ContentNode
	for _, child := range content.OrderedChildren() {
		var (
			node *model.ContentNode
			err  error
		)
		switch {
		case child.IsFolder() && !child.HasChildren():
			node, err = w.folder(ctx, child.ID, depth+1)
		case child.IsFolder():
			if depth+1 > w.r.opts.MaxDepth {
				return nil, fmt.Errorf("%w: folder %s exceeds maximum depth %d", common.ErrAPI, child.ID, w.r.opts.MaxDepth)
			}
			node, err = w.build(ctx, child, depth+1)
		default:
			node, err = w.build(ctx, child, depth)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	return content.ToNode(children), nil
}

// fetch loads one content listing, retrying transient failures and
// refreshing the account token once on 401.
func (r *Resolver) fetch(ctx context.Context, id, hash string) (*dto.Content, error) {
	var content *dto.Content
	refreshed := false

	// Token and site token lookups retry on their own.
	policy := r.opts.Retry
	policy.Retryable = func(err error) bool {
		return retry.IsTransient(err) && !errors.Is(err, common.ErrAuth) && !errors.Is(err, common.ErrAPI)
	}

	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		c, err := r.fetchOnce(ctx, id, hash)
		if errors.Is(err, errTokenRejected) && !refreshed {
			refreshed = true
			r.log.Debug("Account token rejected, refreshing", slog.String("content", id))
			c, err = r.fetchOnce(ctx, id, hash)
		}
		if errors.Is(err, errTokenRejected) {
			return fmt.Errorf("%w: token rejected", common.ErrAuth)
		}
		content = c
		return err
	})
	if err != nil {
		if retry.IsTransient(err) && !errors.Is(err, common.ErrAuth) && !errors.Is(err, common.ErrAPI) {
			return nil, fmt.Errorf("%w: %w", common.ErrAPI, err)
		}
		return nil, err
	}
	return content, nil
}

var errTokenRejected = errors.New("token rejected")

func (r *Resolver) fetchOnce(ctx context.Context, id, hash string) (*dto.Content, error) {
	token, err := r.Token(ctx)
	if err != nil {
		return nil, err
	}
	wt, err := r.siteTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("wt", wt)
	query.Set("cache", "true")
	if hash != "" {
		query.Set("password", hash)
	}
	endpoint := r.opts.APIURL + "/contents/" + url.PathEscape(id) + "?" + query.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("X-Website-Token", wt)

	var env dto.Envelope
	if err := r.client.GetJSON(ctx, endpoint, header, &env); err != nil {
		var se *apihttp.StatusError
		if errors.As(err, &se) {
			if se.Code == http.StatusUnauthorized {
				r.invalidateToken(token)
				return nil, errTokenRejected
			}
			// Error responses usually still carry an envelope.
			if json.Unmarshal([]byte(se.Body), &env) == nil && env.Status != "" {
				return nil, statusError(env.Status, id)
			}
		}
		return nil, err
	}

	if !env.OK() {
		if env.Status == "error-auth" {
			r.invalidateToken(token)
			return nil, errTokenRejected
		}
		return nil, statusError(env.Status, id)
	}

	var content dto.Content
	if err := env.Decode(&content); err != nil {
		return nil, fmt.Errorf("%w: content %s: %w", common.ErrAPI, id, err)
	}

	switch content.PasswordStatus {
	case "", dto.PasswordOK:
	case dto.PasswordRequired:
		return nil, fmt.Errorf("%w: content %s is protected", common.ErrPasswordRequired, id)
	default:
		return nil, fmt.Errorf("%w: content %s", common.ErrPasswordIncorrect, id)
	}
	return &content, nil
}

// statusError maps a non-ok envelope status onto the error taxonomy.
func statusError(status, id string) error {
	switch status {
	case "error-notFound":
		return fmt.Errorf("%w: %s", common.ErrNotFound, id)
	case "error-passwordRequired":
		return fmt.Errorf("%w: content %s is protected", common.ErrPasswordRequired, id)
	case "error-passwordWrong":
		return fmt.Errorf("%w: content %s", common.ErrPasswordIncorrect, id)
	case "error-rateLimit":
		return fmt.Errorf("%w: rate limited", common.ErrNetwork)
	default:
		return fmt.Errorf("%w: content %s returned status %q", common.ErrAPI, id, status)
	}
}
