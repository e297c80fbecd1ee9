package alerts

import "sort"

// Registry owns one Record per Key. It is not safe for concurrent use; only
// the evaluation pass that owns it may touch it.
type Registry struct {
	records map[Key]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: map[Key]*Record{}}
}

// GetOrCreate returns the record for key, creating a Normal one on first use.
// The same pointer is returned on every call.
func (r *Registry) GetOrCreate(key Key) *Record {
	rec, ok := r.records[key]
	if !ok {
		rec = &Record{}
		r.records[key] = rec
	}
	return rec
}

func (r *Registry) Get(key Key) (Record, bool) {
	rec, ok := r.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (r *Registry) Len() int { return len(r.records) }

// Snapshot copies every record, sorted by key.
func (r *Registry) Snapshot() []KeyedRecord {
	out := make([]KeyedRecord, 0, len(r.records))
	for k, rec := range r.records {
		out = append(out, KeyedRecord{Key: k, Record: *rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type KeyedRecord struct {
	Key Key
	Record
}
