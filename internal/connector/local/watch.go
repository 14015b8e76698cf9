package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/model"
)

// Watch emits a record each time an allow-listed file under the root is
// created or written. Subdirectories are watched only when the connector is
// recursive. Both channels are closed once ctx is done.
func (c *Connector) Watch(ctx context.Context) (<-chan model.Record, <-chan error, error) {
	if err := c.checkDir(); err != nil {
		return nil, nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, connector.NewError(connector.KindTransport, c.id, "watch",
			fmt.Errorf("creating watcher: %w", err))
	}
	if err := c.addWatches(w, c.Path()); err != nil {
		_ = w.Close()
		return nil, nil, connector.NewError(connector.KindTransport, c.id, "watch", err)
	}

	records := make(chan model.Record)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		defer func() { _ = w.Close() }()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				rec, emit := c.handleEvent(w, event)
				if !emit {
					continue
				}
				select {
				case records <- rec:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.Warn("local %s: watcher error: %v", c.id, err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return records, errs, nil
}

func (c *Connector) addWatches(w *fsnotify.Watcher, dir string) error {
	if !c.Recursive() {
		return w.Add(dir)
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != dir && hidden(d.Name()) {
				return fs.SkipDir
			}
			if err := w.Add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
		}
		return nil
	})
}

func (c *Connector) handleEvent(w *fsnotify.Watcher, event fsnotify.Event) (model.Record, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return model.Record{}, false
	}
	if hidden(filepath.Base(event.Name)) {
		return model.Record{}, false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return model.Record{}, false
	}
	if info.IsDir() {
		if c.Recursive() && event.Has(fsnotify.Create) {
			if err := c.addWatches(w, event.Name); err != nil {
				c.log.Warn("local %s: %v", c.id, err)
			}
		}
		return model.Record{}, false
	}
	if !info.Mode().IsRegular() || !supported(event.Name) {
		return model.Record{}, false
	}

	rec, err := c.readRecord(event.Name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("local %s: could not read file %s: %v", c.id, event.Name, err)
		}
		return model.Record{}, false
	}
	return rec, true
}
