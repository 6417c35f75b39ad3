package web

// filewatcher.go reloads the page templates while developing. It only runs
// when development mode is on and the templates are mounted from disk.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// flushDuration gives editors time to finish their multiple-write save
// dance before a single reload is signalled.
const flushDuration = 25 * time.Millisecond

// watchTemplates rebuilds the route handlers, and so re-parses every page
// template, whenever an html file under the template directory is written.
// It blocks until the context is cancelled.
func (web *WebApp) watchTemplates(ctx context.Context) error {
	notifier, err := newFileChangeNotifier(web.cfg.Web.TemplatesPath, ".html")
	if err != nil {
		return fmt.Errorf("template watcher error: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return notifier.watch(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-notifier.update:
				if !ok {
					return nil
				}
				web.log.Info("templates changed, reloading")
				web.handler.Store(web.routes())
			}
		}
	})
	return g.Wait()
}

// fileChangeNotifier watches one directory for writes to files with a
// given suffix, coalescing bursts of writes into single updates.
type fileChangeNotifier struct {
	dir     string
	suffix  string
	watcher *fsnotify.Watcher
	update  chan bool
}

// newFileChangeNotifier registers a watcher on dir for files ending in
// suffix.
func newFileChangeNotifier(dir, suffix string) (*fileChangeNotifier, error) {
	dir = filepath.Clean(dir)
	check, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dir %q not found: %w", dir, err)
	}
	if !check.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify new watcher error: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("fsnotify add error for dir %q: %w", dir, err)
	}

	return &fileChangeNotifier{
		dir:     dir,
		suffix:  strings.ToLower(suffix),
		watcher: watcher,
		update:  make(chan bool),
	}, nil
}

// watch runs the notifier until the context is cancelled or the underlying
// watcher fails. Updates are delivered on the update channel.
func (fcn *fileChangeNotifier) watch(ctx context.Context) error {

	// eventChan buffers raw write events before coalescing.
	eventChan := make(chan bool)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err, ok := <-fcn.watcher.Errors:
				if !ok {
					return errors.New("unexpected close from watcher.Errors")
				}
				return fmt.Errorf("unexpected notify error: %w", err)
			case e, ok := <-fcn.watcher.Events:
				if !ok {
					return errors.New("unexpected close from watcher.Events")
				}
				if !e.Has(fsnotify.Write) {
					continue
				}
				basename := filepath.Base(e.Name)
				// ignore dot files
				if len(basename) > 0 && basename[0] == '.' {
					continue
				}
				if strings.HasSuffix(strings.ToLower(basename), fcn.suffix) {
					eventChan <- true
				}
			}
		}
	})

	// Stack writes arriving within flushDuration into one update.
	g.Go(func() error {
		flush := false
		timer := time.NewTicker(flushDuration)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-eventChan:
				if !ok {
					return nil
				}
				flush = true
				timer.Reset(flushDuration)
			case <-timer.C:
				if flush {
					fcn.update <- true
					flush = false
				}
			}
		}
	})

	err := g.Wait()
	close(eventChan)
	close(fcn.update)
	_ = fcn.watcher.Close()
	return err
}
