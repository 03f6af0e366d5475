package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{"valid", `{"format":{"duration":"187.432000"}}`, 187.432, false},
		{"integer seconds", `{"format":{"duration":"60"}}`, 60, false},
		{"missing duration", `{"format":{}}`, 0, true},
		{"zero duration", `{"format":{"duration":"0.000000"}}`, 0, true},
		{"negative", `{"format":{"duration":"-3"}}`, 0, true},
		{"not json", `ffprobe: command not found`, 0, true},
		{"garbage duration", `{"format":{"duration":"abc"}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration([]byte(tt.output))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseDuration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchAudioLocalPath(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "song.m4a")
	if err := os.WriteFile(local, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	f := &Fetcher{}
	got, err := f.FetchAudio(context.Background(), local, dir)
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	if got != local {
		t.Errorf("local path should be returned unchanged, got %q", got)
	}

	if _, err := f.FetchAudio(context.Background(), filepath.Join(dir, "missing.m4a"), dir); err == nil {
		t.Error("missing local file should fail")
	}
}

func TestFetchAudioDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake audio bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{Client: srv.Client()}
	got, err := f.FetchAudio(context.Background(), srv.URL+"/songs/luna.m4a?sig=abc", dir)
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	if filepath.Base(got) != "luna.m4a" {
		t.Errorf("dest name = %q, want luna.m4a", filepath.Base(got))
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "fake audio bytes" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestFetchAudioBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	if _, err := f.FetchAudio(context.Background(), srv.URL+"/gone.m4a", t.TempDir()); err == nil {
		t.Error("404 should fail the fetch")
	}
}
