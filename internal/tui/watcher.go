package tui

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// refreshTarget is the part of tea.Program the watcher needs; tests
// substitute a recorder.
type refreshTarget interface {
	Send(msg tea.Msg)
}

// WatchDirs forwards debounced write/create/remove events from the given
// directories into the program as RefreshMsg. It returns an error only
// when no directory could be watched at all; individual missing
// directories are skipped (the vendor CLI may simply not be installed).
func WatchDirs(ctx context.Context, target refreshTarget, dirs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := 0
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Printf("watch: skipping %s: %v", dir, err)
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return fmt.Errorf("no vendor directories available to watch")
	}

	go func() {
		defer watcher.Close()

		const debounce = 500 * time.Millisecond
		var timer *time.Timer

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					target.Send(RefreshMsg{})
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watch: %v", err)
			}
		}
	}()
	return nil
}
