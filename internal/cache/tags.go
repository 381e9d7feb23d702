package cache

import "sync"

// tagIndex maintains the two bidirectional mappings (key -> tags, tag ->
// keys) described in spec.md §4.1, protected by its own mutex since it is
// read/written from both Set and the invalidate paths independently of the
// per-key stripe locks.
type tagIndex struct {
	mu        sync.Mutex
	tagsByKey map[string][]string
	keysByTag map[string]map[string]struct{}
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		tagsByKey: make(map[string][]string),
		keysByTag: make(map[string]map[string]struct{}),
	}
}

// update replaces key's tag set, adjusting the reverse index accordingly.
func (t *tagIndex) update(key string, tags []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(key)
	if len(tags) == 0 {
		return
	}
	cp := append([]string(nil), tags...)
	t.tagsByKey[key] = cp
	for _, tag := range cp {
		set, ok := t.keysByTag[tag]
		if !ok {
			set = make(map[string]struct{})
			t.keysByTag[tag] = set
		}
		set[key] = struct{}{}
	}
}

// remove drops key from the index entirely.
func (t *tagIndex) remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(key)
}

func (t *tagIndex) removeLocked(key string) {
	tags, ok := t.tagsByKey[key]
	if !ok {
		return
	}
	delete(t.tagsByKey, key)
	for _, tag := range tags {
		if set, ok := t.keysByTag[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(t.keysByTag, tag)
			}
		}
	}
}

// keysForTag returns a snapshot of the keys currently tagged with tag.
func (t *tagIndex) keysForTag(tag string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.keysByTag[tag]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// clear empties the index.
func (t *tagIndex) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tagsByKey = make(map[string][]string)
	t.keysByTag = make(map[string]map[string]struct{})
}
