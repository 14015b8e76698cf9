// Package local implements a connector over plain text files in a local
// directory.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/logger"
	"github.com/nhle/omninexus/internal/model"
)

// TypeName is the registry name of the local files connector.
const TypeName = "local_files"

const (
	keyPath      = "path"
	keyRecursive = "recursive"
	keyEncoding  = "encoding"

	defaultEncoding = "utf-8"
)

// mimeTypes is the allow-list of readable extensions.
var mimeTypes = map[string]string{
	".txt": "text/plain",
	".md":  "text/markdown",
}

// SupportedExtensions returns the allow-listed extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(mimeTypes))
	for ext := range mimeTypes {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Schema describes the accepted configuration keys.
var Schema = connector.Schema{
	{
		Name:        keyPath,
		Type:        connector.TypeDirectoryPath,
		Required:    true,
		Description: "Path to the directory containing text files.",
	},
	{
		Name:        keyRecursive,
		Type:        connector.TypeBoolean,
		Default:     false,
		Description: "Search recursively in subdirectories.",
	},
	{
		Name:        keyEncoding,
		Type:        connector.TypeString,
		Default:     defaultEncoding,
		Description: "Text encoding of the files (e.g. utf-8, windows-1252).",
		Check: func(v any) error {
			s, _ := v.(string)
			if _, err := htmlindex.Get(s); err != nil {
				return fmt.Errorf("unknown encoding %q", s)
			}
			return nil
		},
	},
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger used for skip warnings.
func WithLogger(l *logger.Logger) Option {
	return func(c *Connector) {
		c.log = logger.OrDiscard(l)
	}
}

// Connector reads .txt and .md files from a directory.
type Connector struct {
	id      string
	cfg     model.ConnectorConfig
	log     *logger.Logger
	enc     encoding.Encoding
	encName string
	lastErr error
}

// New validates cfg and returns a ready connector.
func New(id string, cfg model.ConnectorConfig, opts ...Option) (*Connector, error) {
	c := &Connector{
		id:  id,
		cfg: cfg,
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// Constructor adapts New to the registry's constructor signature.
func Constructor(opts ...Option) connector.Constructor {
	return func(id string, cfg model.ConnectorConfig) (connector.Connector, error) {
		c, err := New(id, cfg, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (c *Connector) ID() string                        { return c.id }
func (c *Connector) Type() string                      { return TypeName }
func (c *Connector) GetConfigSchema() connector.Schema { return Schema }
func (c *Connector) LastError() error                  { return c.lastErr }

// Path returns the resolved absolute root directory.
func (c *Connector) Path() string { return c.cfg.String(keyPath) }

// Recursive reports whether subdirectories are searched.
func (c *Connector) Recursive() bool { return c.cfg.Bool(keyRecursive) }

// ValidateConfig resolves the path to an absolute directory and fills the
// recursive and encoding defaults.
func (c *Connector) ValidateConfig() error {
	if err := Schema.Apply(c.id, c.cfg); err != nil {
		return err
	}
	enc, err := htmlindex.Get(c.cfg.String(keyEncoding))
	if err != nil {
		return connector.NewError(connector.KindConfiguration, c.id, "validate", err)
	}
	c.enc = enc
	c.encName, _ = htmlindex.Name(enc)
	return nil
}

// Connect checks the directory is still accessible. There is no session.
func (c *Connector) Connect(context.Context) bool {
	if err := c.checkDir(); err != nil {
		c.lastErr = err
		return false
	}
	c.lastErr = nil
	return true
}

// Disconnect is a no-op.
func (c *Connector) Disconnect() {}

func (c *Connector) checkDir() error {
	info, err := os.Stat(c.Path())
	if err != nil {
		return connector.NewError(connector.KindConfiguration, c.id, "connect",
			fmt.Errorf("path %q is not a valid directory or is inaccessible: %w", c.Path(), err))
	}
	if !info.IsDir() {
		return connector.NewError(connector.KindConfiguration, c.id, "connect",
			fmt.Errorf("path %q is not a directory", c.Path()))
	}
	return nil
}

// GetMetadata returns descriptive facts about the connector.
func (c *Connector) GetMetadata() map[string]any {
	status := "ready"
	if c.checkDir() != nil {
		status = "error - path invalid"
	}
	return map[string]any{
		"connector_id":         c.id,
		"type":                 TypeName,
		"path":                 c.Path(),
		"recursive":            c.Recursive(),
		"encoding":             c.cfg.String(keyEncoding),
		"supported_extensions": SupportedExtensions(),
		"status":               status,
	}
}

// QueryData reads every allow-listed file under the root. Files that cannot
// be read are logged and counted as skipped.
func (c *Connector) QueryData(ctx context.Context, params connector.QueryParams) (connector.Result, error) {
	res := connector.EmptyResult()

	if err := c.checkDir(); err != nil {
		c.lastErr = err
		return res, err
	}

	paths, err := c.listFiles(ctx)
	if err != nil {
		c.lastErr = err
		return connector.EmptyResult(), err
	}

	for _, p := range paths {
		if params.Limit > 0 && len(res.Records) >= params.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			c.lastErr = err
			return connector.EmptyResult(), err
		}

		res.Processed++
		rec, err := c.readRecord(p)
		if err != nil {
			c.log.Warn("local %s: could not read file %s: %v", c.id, p, err)
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	c.lastErr = nil
	c.log.Debug("local %s: %d records from %s (%d skipped)", c.id, len(res.Records), c.Path(), res.Skipped)
	return res, nil
}

// listFiles returns allow-listed regular files in enumeration order.
// Names starting with a dot are ignored, and so is everything below a
// hidden directory. Symlinks to regular files are followed.
func (c *Connector) listFiles(ctx context.Context) ([]string, error) {
	root := c.Path()

	if !c.Recursive() {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, connector.NewError(connector.KindTransport, c.id, "list",
				fmt.Errorf("reading directory %s: %w", root, err))
		}
		var out []string
		for _, e := range entries {
			p := filepath.Join(root, e.Name())
			if !hidden(e.Name()) && supported(e.Name()) && isFile(p, e) {
				out = append(out, p)
			}
		}
		return out, nil
	}

	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			c.log.Warn("local %s: skipping %s: %v", c.id, p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p != root && hidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if supported(d.Name()) && isFile(p, d) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, connector.NewError(connector.KindTransport, c.id, "list",
			fmt.Errorf("walking %s: %w", root, err))
	}
	return out, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isFile(p string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func supported(name string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// readRecord builds the record for one file. The returned error is a parse
// error, including content that is not valid in the configured encoding.
func (c *Connector) readRecord(p string) (model.Record, error) {
	info, err := os.Stat(p)
	if err != nil {
		return model.Record{}, connector.NewError(connector.KindParse, c.id, "stat", err)
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return model.Record{}, connector.NewError(connector.KindParse, c.id, "read", err)
	}

	content, err := c.decode(raw)
	if err != nil {
		return model.Record{}, connector.NewError(connector.KindParse, c.id, "decode",
			fmt.Errorf("%s: %w", p, err))
	}

	ext := strings.ToLower(filepath.Ext(p))
	rec := model.NewRecord(c.id, "file://"+filepath.ToSlash(p))
	rec.Metadata["type"] = mimeTypes[ext]
	rec.Metadata["path"] = p
	rec.Metadata["filename"] = filepath.Base(p)
	rec.Metadata["extension"] = ext
	rec.Metadata["size_bytes"] = info.Size()
	rec.Metadata["modified_at"] = info.ModTime().UTC().Format(time.RFC3339)
	rec.Metadata["encoding"] = c.cfg.String(keyEncoding)
	rec.Payload[model.PayloadContent] = content
	return rec, nil
}

// decode converts raw to UTF-8 and rejects byte sequences that are invalid
// in the configured encoding. The x/text decoders substitute U+FFFD for bad
// input, so a substitution that does not re-encode to the same bytes fails.
func (c *Connector) decode(raw []byte) (string, error) {
	if c.encName == defaultEncoding {
		if !utf8.Valid(raw) {
			return "", errors.New("invalid utf-8 byte sequence")
		}
		return string(raw), nil
	}

	text, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", c.encName, err)
	}
	if bytes.ContainsRune(text, utf8.RuneError) {
		back, err := c.enc.NewEncoder().Bytes(text)
		if err != nil || !bytes.Equal(back, raw) {
			return "", fmt.Errorf("invalid %s byte sequence", c.encName)
		}
	}
	return string(text), nil
}
