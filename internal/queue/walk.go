package queue

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"metaredact/pkg/mimeutil"
)

type walkJob struct {
	path    string
	display string
}

// Walk expands files and directories into handles, in walk order. Directories
// are descended recursively and only regular files are kept. Media types are
// sniffed from content first, then from the extension.
func Walk(ctx context.Context, roots ...string) ([]FileHandle, error) {
	var jobs []walkJob
	for _, root := range roots {
		found, err := collect(ctx, root)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, found...)
	}

	handles := make([]FileHandle, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(job.path)
			if err != nil {
				return err
			}
			handles[i] = PathHandle(job.path, job.display, mimeutil.DetectMIME(job.path), info)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return handles, nil
}

func collect(ctx context.Context, root string) ([]walkJob, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []walkJob{{path: absRoot, display: filepath.Base(absRoot)}}, nil
	}

	var jobs []walkJob
	err = fs.WalkDir(os.DirFS(absRoot), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		jobs = append(jobs, walkJob{
			path:    filepath.Join(absRoot, path),
			display: filepath.ToSlash(filepath.Join(filepath.Base(absRoot), path)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
