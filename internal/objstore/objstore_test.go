package objstore

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sctools/internal/execrun"
)

func TestCLI_Command(t *testing.T) {
	rec := &execrun.Recorder{}
	c := New("", rec)
	c.Quiet = true
	res := c.Copy(context.Background(), "/w/a.csv", "s3://b/p/")
	if !res.OK() {
		t.Fatalf("copy: %+v", res)
	}
	want := execrun.Command{Name: "aws", Args: []string{"s3", "cp", "--quiet", "/w/a.csv", "s3://b/p/"}}
	if diff := cmp.Diff(want, rec.Calls[0]); diff != "" {
		t.Fatalf("command mismatch (-want +got):\n%s", diff)
	}
}

func TestDirURL(t *testing.T) {
	for in, want := range map[string]string{
		"bucket/x":      "s3://bucket/x/",
		"s3://bucket/x": "s3://bucket/x/",
		"bucket/x/":     "s3://bucket/x/",
	} {
		if got := DirURL(in); got != want {
			t.Errorf("DirURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDownloadLink(t *testing.T) {
	got := DownloadLink("", "bucket/rank", "GeneRank_a.1.csv")
	if got != "https://s3-us-west-2.amazonaws.com/bucket/rank/GeneRank_a.1.csv" {
		t.Fatalf("link = %q", got)
	}
	if got := DownloadLink("eu-west-1", "s3://b/", "f"); got != "https://s3-eu-west-1.amazonaws.com/b/f" {
		t.Fatalf("link = %q", got)
	}
}
