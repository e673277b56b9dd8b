package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Write([]byte(`{"status":"ok","data":{"token":"abc"}}`))
	}))
	defer srv.Close()

	client := NewClient(DefaultOptions())
	var out struct {
		Status string `json:"status"`
		Data   struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	err := client.GetJSON(context.Background(), srv.URL, http.Header{"Authorization": {"Bearer tok"}}, &out)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Data.Token != "abc" {
		t.Errorf("token = %q, want abc", out.Data.Token)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, common.ErrNotFound},
		{http.StatusUnauthorized, common.ErrAuth},
		{http.StatusForbidden, common.ErrAuth},
		{http.StatusTooManyRequests, common.ErrNetwork},
		{http.StatusBadGateway, common.ErrNetwork},
		{http.StatusServiceUnavailable, common.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.code)
			}))
			defer srv.Close()

			err := NewClient(DefaultOptions()).GetJSON(context.Background(), srv.URL, nil, &struct{}{})
			if !errors.Is(err, tt.want) {
				t.Errorf("GetJSON() error = %v, want %v", err, tt.want)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.code {
				t.Errorf("GetJSON() error = %#v, want StatusError %d", err, tt.code)
			}
		})
	}
}

func TestClient_BadRequestIsNotClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewClient(DefaultOptions()).GetJSON(context.Background(), srv.URL, nil, nil)
	if err == nil || errors.Is(err, common.ErrNetwork) || errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetJSON() error = %v", err)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	err := NewClient(DefaultOptions()).GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	if !errors.Is(err, common.ErrAPI) {
		t.Errorf("GetJSON() error = %v, want ErrAPI", err)
	}
}

func TestClient_TransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(DefaultOptions()).GetString(context.Background(), url)
	if !errors.Is(err, common.ErrNetwork) {
		t.Errorf("GetString() error = %v, want ErrNetwork", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(DefaultOptions()).GetString(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetString() error = %v, want deadline exceeded", err)
	}
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("body = %s", body)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := NewClient(DefaultOptions()).PostJSON(context.Background(), srv.URL, nil, map[string]int{"a": 1}, &out)
	if err != nil || !out.OK {
		t.Fatalf("PostJSON() = %v, %+v", err, out)
	}
}

func TestClient_OpenRange(t *testing.T) {
	data := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "f.bin", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	client := NewClient(DefaultOptions())

	resp, err := client.OpenRange(context.Background(), srv.URL, nil, 0)
	if err != nil {
		t.Fatalf("OpenRange(0) error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "0123456789" {
		t.Errorf("OpenRange(0) = %d %q", resp.StatusCode, body)
	}

	resp, err = client.OpenRange(context.Background(), srv.URL, nil, 4)
	if err != nil {
		t.Fatalf("OpenRange(4) error = %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent || string(body) != "456789" {
		t.Errorf("OpenRange(4) = %d %q", resp.StatusCode, body)
	}

	_, err = client.OpenRange(context.Background(), srv.URL, nil, 10)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("OpenRange(10) error = %v, want 416", err)
	}
}

func TestProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	var updates []int64
	pw := &ProgressWriter{
		Writer:   &buf,
		Total:    8,
		Written:  2,
		OnUpdate: func(written, total int64) { updates = append(updates, written) },
	}

	pw.Write([]byte("abc"))
	pw.Write([]byte("def"))

	if buf.String() != "abcdef" {
		t.Errorf("buf = %q", buf.String())
	}
	if len(updates) != 2 || updates[0] != 5 || updates[1] != 8 {
		t.Errorf("updates = %v", updates)
	}
}
