// Package objstore copies files to and from object storage by shelling out to
// the storage CLI (`aws s3 cp src dst`).
package objstore

import (
	"context"
	"fmt"
	"strings"

	"sctools/internal/execrun"
)

// DefaultRegion is the region used in download links.
const DefaultRegion = "us-west-2"

// Copier is what callers need from object storage.
type Copier interface {
	Copy(ctx context.Context, src, dst string) execrun.Result
}

// CLI drives the storage command line tool.
type CLI struct {
	Binary string   // "aws"
	Prefix []string // ["s3"]
	Quiet  bool
	Dir    string // working directory for the tool
	Runner execrun.Runner
}

// New returns a CLI for the aws tool.
func New(binary string, r execrun.Runner) *CLI {
	if binary == "" {
		binary = "aws"
	}
	return &CLI{Binary: binary, Prefix: []string{"s3"}, Runner: r}
}

// Command builds `<binary> s3 cp [--quiet] src dst`.
func (c *CLI) Command(src, dst string) execrun.Command {
	args := append(append([]string(nil), c.Prefix...), "cp")
	if c.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, src, dst)
	return execrun.Command{Name: c.Binary, Args: args, Dir: c.Dir}
}

// Copy runs the copy. A non-zero status is returned as-is, never retried.
func (c *CLI) Copy(ctx context.Context, src, dst string) execrun.Result {
	return c.Runner.Run(ctx, c.Command(src, dst))
}

// DirURL turns "bucket/prefix" or "s3://bucket/prefix" into "s3://bucket/prefix/".
func DirURL(dir string) string {
	dir = strings.TrimSuffix(dir, "/")
	if !strings.Contains(dir, "://") {
		dir = "s3://" + dir
	}
	return dir + "/"
}

// DownloadLink is the public HTTPS link for file under bucketPath
// ("bucket/prefix", without scheme).
func DownloadLink(region, bucketPath, file string) string {
	if region == "" {
		region = DefaultRegion
	}
	bucketPath = strings.TrimSuffix(strings.TrimPrefix(bucketPath, "s3://"), "/")
	return fmt.Sprintf("https://s3-%s.amazonaws.com/%s/%s", region, bucketPath, file)
}
