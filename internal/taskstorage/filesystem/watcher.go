package filesystem

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events produced by one
// temp-file-and-rename write.
const watchDebounce = 100 * time.Millisecond

// Watcher reports changes to the snapshot file made by any process.
// The parent directory is watched rather than the file itself, because
// atomic writes replace the file's inode.
type Watcher struct {
	Changes <-chan struct{} // one value per debounced change

	changes chan struct{}
	done    chan struct{}
	name    string
	watcher *fsnotify.Watcher
}

// Watch starts watching the backend's snapshot file.
func (fs *FilesystemStorage) Watch() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(fs.path)); err != nil {
		fw.Close()
		return nil, err
	}

	ch := make(chan struct{}, 1)
	w := &Watcher{
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		name:    filepath.Base(fs.path),
		watcher: fw,
	}
	go w.loop()
	return w, nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending bool
	var last time.Time
	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if pending {
					w.emit()
				}
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = true
				last = time.Now()
			}

		case <-ticker.C:
			if pending && time.Since(last) >= watchDebounce {
				w.emit()
				pending = false
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next event still arrives.
		}
	}
}

// emit never blocks: a change already waiting covers this one too.
func (w *Watcher) emit() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
