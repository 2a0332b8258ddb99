package monitoring

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// A Resource is the content served at a static path. It is either fixed
// bytes, a file read on every request, or a function called on every request.
type Resource struct {
	contentType string
	content     []byte
	path        string
	load        func() ([]byte, error)
}

// Bytes creates a resource serving content.
func Bytes(content []byte) Resource {
	if content == nil {
		content = []byte{}
	}

	return Resource{content: content}
}

// File creates a resource serving the file at path.
func File(path string) Resource {
	return Resource{path: path}
}

// Func creates a resource serving what load returns.
func Func(load func() ([]byte, error)) Resource {
	return Resource{load: load}
}

// WithContentType returns a copy of the resource that is served with the
// given content type. Without one, the type is derived from the file
// extension or from the content.
func (r Resource) WithContentType(contentType string) Resource {
	r.contentType = contentType
	return r
}

// Read returns the content of the resource.
func (r Resource) Read() ([]byte, error) {
	switch {
	case r.load != nil:
		content, err := r.load()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResourceNotReadable, err)
		}

		return content, nil
	case r.path != "":
		return readFile(r.path)
	case r.content != nil:
		return r.content, nil
	default:
		return nil, fmt.Errorf("%w: empty resource", ErrResourceNotReadable)
	}
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceNotReadable, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a file", ErrResourceNotReadable, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceNotReadable, err)
	}

	return content, nil
}

func (r Resource) typeOf(urlPath string, content []byte) string {
	if r.contentType != "" {
		return r.contentType
	}

	ext := filepath.Ext(r.path)
	if ext == "" {
		ext = filepath.Ext(urlPath)
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}

	return http.DetectContentType(content)
}

func (s *Server) serveResource(urlPath string, r Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		content, err := r.Read()
		if err != nil {
			s.logger.WithError(err).
				WithField("path", urlPath).
				Error("cannot serve resource")
			http.Error(w, "Internal server error", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", r.typeOf(urlPath, content))
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)

		if req.Method == http.MethodHead {
			return
		}

		_, err = w.Write(content)
		if err != nil {
			s.logger.WithError(err).
				WithField("path", urlPath).
				Debug("cannot write resource")
		}
	}
}

type resourceFile struct {
	Resources map[string]string `yaml:"resources"`
}

// LoadResourceFile reads a YAML file mapping URL paths to files:
//
//	resources:
//	  /: ./index.html
//	  /app.js: ./app.js
//
// Relative file paths are resolved against the directory of the YAML file.
// The files themselves are read when they are requested.
func LoadResourceFile(path string) (map[string]Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resource file: %w", err)
	}

	var f resourceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing resource file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	resources := make(map[string]Resource, len(f.Resources))

	for urlPath, file := range f.Resources {
		if len(urlPath) == 0 || urlPath[0] != '/' {
			return nil, fmt.Errorf(
				"resource file %s: path %q must start with /", path, urlPath)
		}

		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}

		resources[urlPath] = File(file)
	}

	return resources, nil
}
