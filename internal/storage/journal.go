package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
)

// journal is a string -> unix milli map persisted as a snapshot plus an
// append-only JSON Lines journal. The journal is compacted into the
// snapshot every compactEvery writes.
type journal struct {
	snapshotPath string
	file         *os.File
	entries      map[string]int64
	writes       int
	compactEvery int
}

type journalRecord struct {
	Key string `json:"key"`
	At  int64  `json:"at"`
}

func openJournal(prefix string, compactEvery int) (*journal, error) {
	j := &journal{
		snapshotPath: prefix + ".snapshot.json",
		entries:      map[string]int64{},
		compactEvery: compactEvery,
	}
	journalPath := prefix + ".journal.jsonl"
	if err := loadSnapshot(j.snapshotPath, j.entries); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := replayJournal(journalPath, j.entries); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	f, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	j.file = f
	return j, nil
}

func (j *journal) get(key string) (int64, bool) {
	v, ok := j.entries[key]
	return v, ok
}

func (j *journal) put(key string, ms int64) (compactErr error, err error) {
	if j.file == nil {
		return nil, errors.New("journal closed")
	}
	if err := json.NewEncoder(j.file).Encode(journalRecord{Key: key, At: ms}); err != nil {
		return nil, err
	}
	j.entries[key] = ms
	j.writes++
	if j.compactEvery > 0 && j.writes%j.compactEvery == 0 {
		return j.compact(), nil
	}
	return nil, nil
}

// dropBefore removes entries older than ms and compacts.
func (j *journal) dropBefore(ms int64) (int, error) {
	n := 0
	for k, v := range j.entries {
		if v < ms {
			delete(j.entries, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, j.compact()
}

func (j *journal) compact() error {
	if j.file == nil {
		return nil
	}
	tmp := j.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(j.entries); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, j.snapshotPath); err != nil {
		return err
	}
	if err := j.file.Truncate(0); err != nil {
		return err
	}
	_, err = j.file.Seek(0, 2)
	return err
}

func (j *journal) close() error {
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func loadSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		var r journalRecord
		if err := json.Unmarshal(s.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		out[r.Key] = r.At
	}
	return s.Err()
}
