package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/agentic-research/resfs/internal/glob"
	"github.com/agentic-research/resfs/internal/resource"
)

// readOnlyMeta marks objects written with WriteOptions.ReadOnly. Object
// stores have no permission bits, so the flag travels as user metadata.
const readOnlyMeta = "Resfs-Readonly"

// ObjectStoreParams configure an ObjectStore adapter.
type ObjectStoreParams struct {
	Params
	Client *minio.Client
	Bucket string
	// Prefix is the key prefix mapped to the virtual base path.
	Prefix string
}

// ObjectStore serves resources from an S3-compatible bucket. Keys below
// Prefix map onto the virtual base path; directories are implied by key
// prefixes.
type ObjectStore struct {
	base
	client *minio.Client
	bucket string
	prefix string // empty or ending with "/"
}

// NewObjectStore creates an ObjectStore adapter.
func NewObjectStore(p ObjectStoreParams) (*ObjectStore, error) {
	b, err := newBase(p.Params)
	if err != nil {
		return nil, err
	}
	if p.Client == nil || p.Bucket == "" {
		return nil, &resource.InvalidOptionsError{Op: "adapter", Reason: "object store adapter needs a client and a bucket"}
	}
	prefix := strings.Trim(p.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ObjectStore{base: b, client: p.Client, bucket: p.Bucket, prefix: prefix}, nil
}

func (s *ObjectStore) key(rel string) string {
	return s.prefix + rel
}

// ByGlob implements resource.Reader.
func (s *ObjectStore) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	s.trace(ctx)
	set, err := s.compile(patterns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*resource.Resource
	add := func(r *resource.Resource) {
		seen[r.Path()] = true
		out = append(out, r)
	}
	for _, root := range s.walkRoots(set) {
		listPrefix := s.key(root)
		if root != "" {
			listPrefix += "/"
		}
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:       listPrefix,
			Recursive:    true,
			WithMetadata: true,
		}) {
			if obj.Err != nil {
				return nil, fmt.Errorf("list %s/%s: %w", s.bucket, listPrefix, obj.Err)
			}
			rel := strings.TrimPrefix(obj.Key, s.prefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			virPath := s.virtual(rel)
			if err := resource.ValidatePath(virPath); err != nil {
				s.logger.DebugContext(ctx, "skipping object", "bucket", s.bucket, "key", obj.Key, "error", err)
				continue
			}
			if opts.Dirs {
				for dir := path.Dir(virPath); glob.Within(dir, s.virRoot); dir = path.Dir(dir) {
					if !seen[dir] && s.accept(dir, true, set, opts) {
						add(s.dirResource(dir, obj.LastModified))
					}
					if dir == s.virRoot {
						break
					}
				}
			}
			if seen[virPath] || !s.accept(virPath, false, set, opts) {
				continue
			}
			r, err := s.createResource(virPath, obj)
			if err != nil {
				return nil, err
			}
			add(r)
		}
	}

	out = append(out, s.ancestorDirs(set, opts)...)
	resource.SortByPath(out)
	s.finish(out...)
	return out, nil
}

// ByPath implements resource.Reader. Directories are never reported since
// they do not exist as objects.
func (s *ObjectStore) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	s.trace(ctx)
	if err := resource.ValidatePath(p); err != nil {
		s.logger.DebugContext(ctx, "skipping lookup", "path", p, "error", err)
		return nil, nil
	}
	if s.excluded(p) {
		return nil, nil
	}
	rel, ok := s.relative(p)
	if !ok || rel == "" {
		return nil, nil
	}
	info, err := s.client.StatObject(ctx, s.bucket, s.key(rel), minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	r, err := s.createResource(p, info)
	if err != nil {
		return nil, err
	}
	s.finish(r)
	return r, nil
}

// Write implements resource.Writer.
func (s *ObjectStore) Write(ctx context.Context, r *resource.Resource, opts resource.WriteOptions) error {
	rel, err := s.checkWrite(r, opts)
	if err != nil {
		return err
	}
	var data []byte
	if opts.Drain {
		data, err = r.DrainBuffer()
	} else {
		data, err = r.Buffer()
	}
	if err != nil {
		return err
	}

	putOpts := minio.PutObjectOptions{}
	if opts.ReadOnly {
		putOpts.UserMetadata = map[string]string{readOnlyMeta: "true"}
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key(rel), bytes.NewReader(data), int64(len(data)), putOpts)
	if err != nil {
		return fmt.Errorf("write %s: %w", r.Path(), err)
	}
	return nil
}

func (s *ObjectStore) createResource(virPath string, obj minio.ObjectInfo) (*resource.Resource, error) {
	mode := fs.FileMode(fileMode)
	if obj.UserMetadata[readOnlyMeta] == "true" {
		mode = readOnlyMode
	}
	key := obj.Key
	return resource.New(resource.Options{
		Path: virPath,
		Stat: &resource.FileInfo{
			FileName:    path.Base(virPath),
			FileSize:    obj.Size,
			FileMode:    mode,
			FileModTime: obj.LastModified,
		},
		StreamFunc: func() (io.ReadCloser, error) {
			// Content is fetched on demand, possibly after the lookup returned.
			return s.client.GetObject(context.Background(), s.bucket, key, minio.GetObjectOptions{})
		},
		Project: s.project,
	})
}

var _ resource.ReaderWriter = (*ObjectStore)(nil)
