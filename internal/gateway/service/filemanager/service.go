package filemanager

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"docbridge/internal/document"
	blobrepo "docbridge/internal/gateway/repository/blob"
	"docbridge/internal/gateway/service/events"
)

type Publisher interface {
	Publish(kind events.Kind, name string, size int64) events.Event
}

// Service answers the file-manager widget's operations against the blob
// container, rooted at document.Root.
type Service struct {
	store     blobrepo.Store
	publisher Publisher
	log       zerolog.Logger
}

func New(store blobrepo.Store, publisher Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, publisher: publisher, log: log}
}

// Handle dispatches one widget request. Failures are reported inside the
// response envelope; the returned error is reserved for malformed requests.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	dir, err := normalizeDir(req.Path)
	if err != nil {
		return nil, err
	}
	var resp *Response
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "read":
		resp, err = s.read(ctx, dir, req.ShowHiddenItems)
	case "delete":
		resp, err = s.delete(ctx, dir, req.Names)
	case "details":
		resp, err = s.details(ctx, dir, req.Names)
	case "search":
		resp, err = s.search(ctx, dir, req.SearchString, req.CaseSensitive, req.ShowHiddenItems)
	case "copy":
		resp, err = s.copy(ctx, dir, req.TargetPath, req.Names, req.RenameFiles)
	default:
		return errorResponse("400", fmt.Sprintf("unsupported action %q", req.Action)), nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("action", req.Action).Str("path", dir).Msg("file operation failed")
		return errorResponse("500", err.Error()), nil
	}
	return resp, nil
}

type folderStat struct {
	size     int64
	modified time.Time
}

// listing splits the keys under dir into direct files and child folders.
func (s *Service) listing(ctx context.Context, dir string) ([]blobrepo.Info, map[string]*folderStat, error) {
	infos, err := s.store.List(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	var files []blobrepo.Info
	folders := map[string]*folderStat{}
	for _, info := range infos {
		rel := strings.TrimPrefix(info.Key, dir)
		if rel == "" {
			continue
		}
		child, _, nested := strings.Cut(rel, "/")
		if !nested {
			files = append(files, info)
			continue
		}
		fs, ok := folders[child]
		if !ok {
			fs = &folderStat{}
			folders[child] = fs
		}
		fs.size += info.Size
		if info.ModifiedAt.After(fs.modified) {
			fs.modified = info.ModifiedAt
		}
	}
	return files, folders, nil
}

func (s *Service) read(ctx context.Context, dir string, showHidden bool) (*Response, error) {
	files, folders, err := s.listing(ctx, dir)
	if err != nil {
		return nil, err
	}
	if dir != document.Root && len(files) == 0 && len(folders) == 0 {
		return errorResponse("404", "Directory not found: "+filterPath(dir)), nil
	}

	out := make([]FileEntry, 0, len(files)+len(folders))
	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if isHidden(name) && !showHidden {
			continue
		}
		fs := folders[name]
		out = append(out, FileEntry{
			Name:         name,
			Size:         fs.size,
			IsFile:       false,
			HasChild:     true,
			FilterPath:   filterPath(dir),
			DateModified: fs.modified,
			DateCreated:  fs.modified,
		})
	}
	for _, info := range files {
		entry := fileEntry(info)
		if isHidden(entry.Name) && !showHidden {
			continue
		}
		out = append(out, entry)
	}

	parent := path.Dir(strings.TrimSuffix(dir, "/"))
	cwd := &FileEntry{
		Name:       dirName(dir),
		IsFile:     false,
		HasChild:   len(folders) > 0,
		FilterPath: filterPath(strings.TrimSuffix(parent, "/") + "/"),
	}
	if dir == document.Root {
		cwd.FilterPath = ""
	}
	return &Response{CWD: cwd, Files: out}, nil
}

func fileEntry(info blobrepo.Info) FileEntry {
	name := path.Base(info.Key)
	return FileEntry{
		Name:         name,
		Size:         info.Size,
		IsFile:       true,
		Type:         path.Ext(name),
		FilterPath:   filterPath(path.Dir(info.Key) + "/"),
		DateModified: info.ModifiedAt,
		DateCreated:  info.ModifiedAt,
	}
}

func (s *Service) delete(ctx context.Context, dir string, names []string) (*Response, error) {
	if len(names) == 0 {
		return errorResponse("400", "names are required"), nil
	}
	var deleted []FileEntry
	for _, name := range names {
		if err := validName(name); err != nil {
			return errorResponse("400", err.Error()), nil
		}
		key := dir + name
		info, err := s.store.Stat(ctx, key)
		switch {
		case err == nil:
			if err := s.store.Delete(ctx, key); err != nil {
				return nil, err
			}
			deleted = append(deleted, fileEntry(info))
			s.publish(events.KindDeleted, key, 0)
			continue
		case !errors.Is(err, blobrepo.ErrNotFound):
			return nil, err
		}

		children, err := s.store.List(ctx, key+"/")
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return &Response{
				Files: deleted,
				Error: &ErrorDetails{Code: "404", Message: "File not found: " + name},
			}, nil
		}
		var size int64
		for _, child := range children {
			if err := s.store.Delete(ctx, child.Key); err != nil && !errors.Is(err, blobrepo.ErrNotFound) {
				return nil, err
			}
			size += child.Size
			s.publish(events.KindDeleted, child.Key, 0)
		}
		deleted = append(deleted, FileEntry{Name: name, Size: size, FilterPath: filterPath(dir)})
	}
	return &Response{Files: deleted}, nil
}

func (s *Service) details(ctx context.Context, dir string, names []string) (*Response, error) {
	if len(names) == 0 {
		names = []string{""}
	}
	var (
		total    int64
		modified time.Time
		isFile   bool
	)
	for _, name := range names {
		if name != "" {
			if err := validName(name); err != nil {
				return errorResponse("400", err.Error()), nil
			}
		}
		key := dir + name
		if name != "" {
			info, err := s.store.Stat(ctx, key)
			if err == nil {
				total += info.Size
				if info.ModifiedAt.After(modified) {
					modified = info.ModifiedAt
				}
				isFile = len(names) == 1
				continue
			}
			if !errors.Is(err, blobrepo.ErrNotFound) {
				return nil, err
			}
			key += "/"
		}
		children, err := s.store.List(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 && name != "" {
			return errorResponse("404", "File not found: "+name), nil
		}
		for _, child := range children {
			total += child.Size
			if child.ModifiedAt.After(modified) {
				modified = child.ModifiedAt
			}
		}
	}

	d := &Details{
		Size:     humanize.IBytes(uint64(total)),
		IsFile:   isFile,
		Modified: modified,
	}
	switch {
	case len(names) > 1:
		d.Name = strings.Join(names, ", ")
		d.Location = strings.TrimSuffix(dir, "/")
		d.MultipleFiles = true
	case names[0] == "":
		d.Name = dirName(dir)
		d.Location = strings.TrimSuffix(dir, "/")
	default:
		d.Name = names[0]
		d.Location = dir + names[0]
	}
	return &Response{Details: d}, nil
}

func (s *Service) search(ctx context.Context, dir, pattern string, caseSensitive, showHidden bool) (*Response, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = "*"
	}
	if !strings.ContainsAny(pattern, "*?[") {
		pattern = "*" + pattern + "*"
	}
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return errorResponse("400", "invalid search pattern"), nil
	}

	infos, err := s.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	match := func(name string) bool {
		if isHidden(name) && !showHidden {
			return false
		}
		if !caseSensitive {
			name = strings.ToLower(name)
		}
		ok, _ := doublestar.Match(pattern, name)
		return ok
	}

	var out []FileEntry
	seenFolders := map[string]bool{}
	for _, info := range infos {
		rel := strings.TrimPrefix(info.Key, dir)
		segments := strings.Split(rel, "/")
		prefix := dir
		for _, seg := range segments[:len(segments)-1] {
			folderKey := prefix + seg + "/"
			if !seenFolders[folderKey] && match(seg) {
				seenFolders[folderKey] = true
				out = append(out, FileEntry{
					Name:         seg,
					HasChild:     true,
					FilterPath:   filterPath(prefix),
					DateModified: info.ModifiedAt,
				})
			}
			prefix = folderKey
		}
		if match(segments[len(segments)-1]) {
			out = append(out, fileEntry(info))
		}
	}
	return &Response{
		CWD:   &FileEntry{Name: dirName(dir), FilterPath: filterPath(dir)},
		Files: out,
	}, nil
}

func (s *Service) copy(ctx context.Context, dir, target string, names, renames []string) (*Response, error) {
	targetDir, err := normalizeDir(target)
	if err != nil {
		return errorResponse("400", err.Error()), nil
	}
	if len(names) == 0 {
		return errorResponse("400", "names are required"), nil
	}
	allowRename := map[string]bool{}
	for _, n := range renames {
		allowRename[n] = true
	}
	taken := func(key string) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := blobrepo.Exists(ctx, s.store, key)
		if err != nil || ok {
			return ok, err
		}
		children, err := s.store.List(ctx, key+"/")
		if err != nil {
			return false, err
		}
		return len(children) > 0, nil
	}

	var (
		copied    []FileEntry
		conflicts []string
	)
	for _, name := range names {
		if err := validName(name); err != nil {
			return errorResponse("400", err.Error()), nil
		}
		src := dir + name
		sources, err := s.sourcesFor(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(sources) == 0 {
			return &Response{Files: copied, Error: &ErrorDetails{Code: "404", Message: "File not found: " + name}}, nil
		}
		if targetDir == dir || strings.HasPrefix(targetDir, src+"/") {
			if !allowRename[name] {
				conflicts = append(conflicts, name)
				continue
			}
		}

		destName := name
		used, err := taken(targetDir + destName)
		if err != nil {
			return nil, err
		}
		if used {
			if !allowRename[name] {
				conflicts = append(conflicts, name)
				continue
			}
			destName, err = nextFreeName(name, func(candidate string) (bool, error) { return taken(targetDir + candidate) })
			if err != nil {
				return nil, err
			}
		}

		var size int64
		for _, srcInfo := range sources {
			content, err := s.store.Get(ctx, srcInfo.Key)
			if err != nil {
				return nil, err
			}
			dest := targetDir + destName + strings.TrimPrefix(srcInfo.Key, src)
			if err := s.store.Put(ctx, dest, content); err != nil {
				return nil, err
			}
			size += int64(len(content))
			s.publish(events.KindCopied, dest, int64(len(content)))
		}
		entry := FileEntry{
			Name:         destName,
			Size:         size,
			IsFile:       len(sources) == 1 && sources[0].Key == src,
			FilterPath:   filterPath(targetDir),
			DateModified: time.Now().UTC(),
		}
		if entry.IsFile {
			entry.Type = path.Ext(destName)
		}
		copied = append(copied, entry)
	}

	resp := &Response{Files: copied}
	if len(conflicts) > 0 {
		resp.Error = &ErrorDetails{Code: "400", Message: "File Already Exists", FileExists: conflicts}
	}
	return resp, nil
}

// sourcesFor resolves name to the blob itself or, for a folder, every blob below it.
func (s *Service) sourcesFor(ctx context.Context, key string) ([]blobrepo.Info, error) {
	info, err := s.store.Stat(ctx, key)
	if err == nil {
		return []blobrepo.Info{info}, nil
	}
	if !errors.Is(err, blobrepo.ErrNotFound) {
		return nil, err
	}
	return s.store.List(ctx, key+"/")
}

// Download returns the selected file, or a zip archive for folders and
// multi-selections.
func (s *Service) Download(ctx context.Context, req DownloadRequest) (*Archive, error) {
	dir, err := normalizeDir(req.Path)
	if err != nil {
		return nil, err
	}
	if len(req.Names) == 0 {
		return nil, fmt.Errorf("%w: names are required", ErrInvalidRequest)
	}
	for _, name := range req.Names {
		if err := validName(name); err != nil {
			return nil, err
		}
	}

	if len(req.Names) == 1 {
		key := dir + req.Names[0]
		content, err := s.store.Get(ctx, key)
		if err == nil {
			contentType := "application/octet-stream"
			if f, ferr := document.FormatOfName(key); ferr == nil {
				contentType = document.ContentType(f)
			}
			return &Archive{Name: req.Names[0], ContentType: contentType, Content: content}, nil
		}
		if !errors.Is(err, blobrepo.ErrNotFound) {
			return nil, err
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	found := 0
	for _, name := range req.Names {
		sources, err := s.sourcesFor(ctx, dir+name)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			content, err := s.store.Get(ctx, src.Key)
			if err != nil {
				return nil, err
			}
			w, err := zw.CreateHeader(&zip.FileHeader{
				Name:     strings.TrimPrefix(src.Key, dir),
				Method:   zip.Deflate,
				Modified: src.ModifiedAt,
			})
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(content); err != nil {
				return nil, err
			}
			found++
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, blobrepo.ErrNotFound
	}
	archiveName := "files.zip"
	if len(req.Names) == 1 {
		archiveName = req.Names[0] + ".zip"
	}
	return &Archive{Name: archiveName, ContentType: "application/zip", Content: buf.Bytes()}, nil
}

func (s *Service) publish(kind events.Kind, key string, size int64) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(kind, document.NameFromBlobPath(key), size)
}
