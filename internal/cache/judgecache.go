// Package cache persists pairwise judge verdicts on disk so repeated claim
// comparisons do not burn LLM quota. The store is content-addressed: one JSON
// file per key, named by the hex of the key hash. It is an optimization only,
// so reads and writes are best-effort and a corrupt file is just a miss.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// JudgeCache stores serialized judgments keyed by a claim-pair digest.
type JudgeCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on files.
	StrictPerms bool
}

// PairKey builds the cache key from the six identifying strings of an ordered
// claim pair. Confidence and context are deliberately excluded: the verdict
// depends only on what the two claims assert. The pair is ordered; callers
// pass (i, j) with i < j.
func PairKey(subject1, predicate1, object1, subject2, predicate2, object2 string) string {
	h := sha256.Sum256([]byte(subject1 + "|" + predicate1 + "|" + object1 + "|" +
		subject2 + "|" + predicate2 + "|" + object2))
	return hex.EncodeToString(h[:])
}

func (c *JudgeCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

func (c *JudgeCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the cached bytes for key, if present. Any failure reads as a
// miss.
func (c *JudgeCache) Get(key string) ([]byte, bool) {
	if err := c.ensureDir(); err != nil {
		return nil, false
	}
	b, err := os.ReadFile(c.pathFor(key))
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

// Save writes bytes for key atomically (temp file + rename) so a crash or a
// concurrent writer can never leave a torn entry behind. Write failures are
// logged and swallowed.
func (c *JudgeCache) Save(key string, data []byte) {
	if err := c.ensureDir(); err != nil {
		return
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	final := c.pathFor(key)
	tmp, err := os.CreateTemp(c.Dir, key+".tmp-*")
	if err != nil {
		log.Debug().Err(err).Msg("judge cache temp file")
		return
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		log.Debug().Err(err).Msg("judge cache write")
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return
	}
	_ = os.Chmod(name, mode)
	if err := os.Rename(name, final); err != nil {
		_ = os.Remove(name)
		log.Debug().Err(err).Msg("judge cache rename")
	}
}
