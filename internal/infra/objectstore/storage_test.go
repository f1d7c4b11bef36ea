package objectstore

import (
	"testing"

	"reviewq/internal/config"
)

func TestBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Storage
		want string
	}{
		{"plain", config.Storage{Endpoint: "minio:9000", BucketName: "imgs"}, "http://minio:9000/imgs"},
		{"ssl", config.Storage{Endpoint: "s3.local", BucketName: "imgs", UseSSL: true}, "https://s3.local/imgs"},
		{"public", config.Storage{Endpoint: "minio:9000", BucketName: "imgs", PublicURL: "https://cdn.example.com/imgs/"}, "https://cdn.example.com/imgs"},
	}
	for _, c := range cases {
		if got := baseURL(c.cfg); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestObjectURL_EscapesName(t *testing.T) {
	got := objectURL("http://minio:9000/imgs", "tasks/a b.png")
	if got != "http://minio:9000/imgs/tasks/a%20b.png" {
		t.Fatalf("got %q", got)
	}
}
