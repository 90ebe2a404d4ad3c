package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "short.mp4")
	if err := os.WriteFile(path, []byte("fake mp4 bytes"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func TestTagsFromHashtags(t *testing.T) {
	got := TagsFromHashtags([]string{"#shorts", " #Facts", "facts", "", "##space"})
	want := []string{"shorts", "Facts", "space"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDailymotionUploadFlow(t *testing.T) {
	var srv *httptest.Server
	var created map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.Form.Get("grant_type") != "password" || r.Form.Get("scope") != "manage_videos" {
			t.Errorf("unexpected token request %v", r.Form)
		}
		if r.Form.Get("username") != "me@example.com" || r.Form.Get("client_id") != "key" {
			t.Errorf("credentials not sent: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/file/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": srv.URL + "/upload-target"})
	})
	mux.HandleFunc("/upload-target", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("multipart file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "fake mp4 bytes" || header.Filename != "short.mp4" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://upload.example/file/1"})
	})
	mux.HandleFunc("/me/videos", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse video form: %v", err)
		}
		created = map[string]string{}
		for k := range r.PostForm {
			created[k] = r.PostForm.Get(k)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"x8abc"}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	dm := NewDailymotion("key", "secret", "me@example.com", "pw")
	dm.BaseURL = srv.URL
	dm.HTTPClient = srv.Client()

	tags := make([]string, 25)
	for i := range tags {
		tags[i] = "t" + strings.Repeat("x", i)
	}
	res, err := dm.Upload(context.Background(), Video{
		Path:        writeVideo(t),
		Title:       strings.Repeat("T", 300),
		Description: "desc",
		Tags:        tags,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.VideoID != "x8abc" || res.URL != "https://www.dailymotion.com/video/x8abc" {
		t.Fatalf("unexpected result %+v", res)
	}
	if created["url"] != "https://upload.example/file/1" {
		t.Fatalf("file url not forwarded: %v", created)
	}
	if len(created["title"]) != 255 {
		t.Fatalf("title should be truncated to 255, got %d", len(created["title"]))
	}
	if n := len(strings.Split(created["tags"], ",")); n != 20 {
		t.Fatalf("expected 20 tags, got %d", n)
	}
	if created["published"] != "true" || created["is_created_for_kids"] != "false" || created["channel"] != "videogames" {
		t.Fatalf("unexpected flags %v", created)
	}
}

func TestDailymotionRequiresCredentials(t *testing.T) {
	dm := NewDailymotion("", "", "", "")
	if _, err := dm.Upload(context.Background(), Video{Path: writeVideo(t)}); err == nil {
		t.Fatalf("expected an error without credentials")
	}
}

func TestYouTubeUpload(t *testing.T) {
	var snippet map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh" {
			t.Errorf("unexpected token request %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"yt-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/youtube/v3/videos") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer yt-token" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"selfDeclaredMadeForKids":false`) {
			t.Errorf("made-for-kids flag not sent: %s", body)
		}
		if !strings.Contains(string(body), `"categoryId":"22"`) {
			t.Errorf("category not sent: %s", body)
		}
		snippet = map[string]any{"seen": true}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"yt123"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	yt := NewYouTube("client", "secret", "refresh")
	yt.OAuth.Endpoint.TokenURL = srv.URL + "/token"
	yt.Endpoint = srv.URL + "/"
	yt.HTTPClient = srv.Client()

	res, err := yt.Upload(context.Background(), Video{
		Path:  writeVideo(t),
		Title: "Octopuses have three hearts",
		Tags:  []string{"shorts"},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.VideoID != "yt123" || res.URL != "https://youtube.com/shorts/yt123" {
		t.Fatalf("unexpected result %+v", res)
	}
	if snippet == nil {
		t.Fatalf("upload endpoint was not called")
	}
}
