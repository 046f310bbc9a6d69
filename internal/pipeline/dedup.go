package pipeline

import "sync"

// HashRegistry remembers the content hash of every successfully indexed
// document per project, so re-uploads of identical content are skipped.
// Process-local; restarts start empty.
type HashRegistry struct {
	mu   sync.Mutex
	seen map[string]string // project + "\x00" + hash -> document id
}

func NewHashRegistry() *HashRegistry {
	return &HashRegistry{seen: make(map[string]string)}
}

func (r *HashRegistry) Lookup(project, hash string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	docID, ok := r.seen[project+"\x00"+hash]
	return docID, ok
}

func (r *HashRegistry) Record(project, hash, docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[project+"\x00"+hash] = docID
}

// ForgetDocument drops every hash recorded for a document, so identical
// content can be re-ingested after the document is deleted.
func (r *HashRegistry) ForgetDocument(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, id := range r.seen {
		if id == docID {
			delete(r.seen, key)
		}
	}
}
