package fetch

import (
	"fmt"
	"os"

	"newscurator/internal/cache"
)

// Ledger is the resumable fetch checkpoint: the set of URL hashes already
// processed this week, persisted after every item so a crashed batch resumes
// at file granularity. It is removed once the batch completes.
type Ledger struct {
	path string
	done map[string]struct{}
}

// ledgerFile is the on-disk shape.
type ledgerFile struct {
	Processed []string `json:"processed"`
}

// OpenLedger loads the ledger at path, starting empty when none exists.
// A corrupt ledger is discarded: reprocessing is safe, trusting bad state is
// not.
func OpenLedger(path string) (*Ledger, error) {
	ledger := &Ledger{path: path, done: make(map[string]struct{})}

	stored, err := cache.ReadJSONFile[ledgerFile](path)
	if err != nil {
		return ledger, nil
	}

	for _, hash := range stored.Processed {
		ledger.done[hash] = struct{}{}
	}
	return ledger, nil
}

// Done reports whether a URL hash was already processed.
func (l *Ledger) Done(hash string) bool {
	_, ok := l.done[hash]
	return ok
}

// MarkDone records a processed URL hash and persists the ledger immediately.
func (l *Ledger) MarkDone(hash string) error {
	l.done[hash] = struct{}{}

	stored := ledgerFile{Processed: make([]string, 0, len(l.done))}
	for h := range l.done {
		stored.Processed = append(stored.Processed, h)
	}
	if err := cache.WriteJSONAtomic(l.path, stored); err != nil {
		return fmt.Errorf("failed to checkpoint fetch ledger: %w", err)
	}
	return nil
}

// Remove deletes the ledger file after a successful full pass.
func (l *Ledger) Remove() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Size returns the number of processed entries, for logging.
func (l *Ledger) Size() int {
	return len(l.done)
}
