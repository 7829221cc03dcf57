package intent

// #region imports
import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// #endregion

// #region rules-file

type rulesFile struct {
	Aggregation []string `yaml:"aggregation"`
	RowLookup   []string `yaml:"row_lookup"`
}

// LoadRules reads keyword lists from a YAML file. Missing sections fall
// back to the built-in defaults; keywords are lowercased for matching.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword file: %w", err)
	}
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse keyword file: %w", err)
	}

	rules := DefaultRules()
	if len(rf.Aggregation) > 0 {
		rules[0].Keywords = lowerAll(rf.Aggregation)
	}
	if len(rf.RowLookup) > 0 {
		rules[1].Keywords = lowerAll(rf.RowLookup)
	}
	return rules, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// #endregion

// #region watcher

// Watcher reloads a classifier's rules when the keyword file changes, so
// keyword lists can be tuned without restarting the engine.
type Watcher struct {
	watcher *fsnotify.Watcher
}

// WatchRules starts watching path and swapping reloaded rules into the
// classifier on every write. Call Stop to release the watcher.
func WatchRules(path string, c *Classifier) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file on save.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				rules, err := LoadRules(target)
				if err != nil {
					log.Printf("[INTENT] keyword reload failed: %v", err)
					continue
				}
				c.SetRules(rules)
				log.Printf("[INTENT] keyword lists reloaded from %s", target)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[INTENT] watcher error: %v", err)
			}
		}
	}()

	return &Watcher{watcher: w}, nil
}

// Stop releases the underlying file watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// #endregion
