package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"horse.fit/outage-watch/internal/db"
)

type fakeEntity struct {
	id    int64
	attrs map[string]any
}

type fakeStore struct {
	mu sync.Mutex

	nextID   int64
	entities map[db.EntityKind][]fakeEntity
	records  []db.InterruptionInsert
	recordID []int64
	links    map[db.LinkKind]map[[2]int64]struct{}

	failKinds  map[db.EntityKind]error
	failLinks  map[db.LinkKind]error
	failInsert    error
	failFind      error
	failSetNotice error

	getOrCreateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:  make(map[db.EntityKind][]fakeEntity),
		links:     make(map[db.LinkKind]map[[2]int64]struct{}),
		failKinds: make(map[db.EntityKind]error),
		failLinks: make(map[db.LinkKind]error),
	}
}

func (s *fakeStore) GetOrCreate(_ context.Context, kind db.EntityKind, attrs map[string]any, matchKeys []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateCalls++
	if err := s.failKinds[kind]; err != nil {
		return 0, err
	}

	for _, entity := range s.entities[kind] {
		if matches(entity.attrs, attrs, matchKeys) {
			return entity.id, nil
		}
	}

	s.nextID++
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	s.entities[kind] = append(s.entities[kind], fakeEntity{id: s.nextID, attrs: copied})
	return s.nextID, nil
}

func (s *fakeStore) FindInterruptionsByDate(_ context.Context, date time.Time) ([]db.InterruptionCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFind != nil {
		return nil, s.failFind
	}

	day := date.Format("2006-01-02")
	out := make([]db.InterruptionCandidate, 0)
	for i, rec := range s.records {
		if rec.Date.Format("2006-01-02") != day {
			continue
		}
		id := s.recordID[i]
		names := make([]string, 0)
		for pair := range s.links[db.LinkDataAreas] {
			if pair[0] != id {
				continue
			}
			for _, area := range s.entities[db.KindAffectedArea] {
				if area.id == pair[1] {
					names = append(names, area.attrs["name"].(string))
				}
			}
		}
		sort.Strings(names)
		out = append(out, db.InterruptionCandidate{ID: id, StartTime: rec.StartTime, EndTime: rec.EndTime, AreaNames: names})
	}
	return out, nil
}

func (s *fakeStore) InsertInterruption(_ context.Context, in db.InterruptionInsert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsert != nil {
		return 0, s.failInsert
	}
	s.nextID++
	s.records = append(s.records, in)
	s.recordID = append(s.recordID, s.nextID)
	return s.nextID, nil
}

func (s *fakeStore) SetInterruptionNotice(_ context.Context, recordID, noticeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSetNotice != nil {
		return s.failSetNotice
	}
	for i, id := range s.recordID {
		if id == recordID {
			attached := noticeID
			s.records[i].NoticeID = &attached
			return nil
		}
	}
	return db.ErrNoRows
}

func (s *fakeStore) Link(_ context.Context, kind db.LinkKind, ownerID, targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failLinks[kind]; err != nil {
		return err
	}
	if s.links[kind] == nil {
		s.links[kind] = make(map[[2]int64]struct{})
	}
	s.links[kind][[2]int64{ownerID, targetID}] = struct{}{}
	return nil
}

func (s *fakeStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeStore) entityCount(kind db.EntityKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities[kind])
}

func (s *fakeStore) entityByName(kind db.EntityKind, name string) (fakeEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entity := range s.entities[kind] {
		if entity.attrs["name"] == name {
			return entity, true
		}
	}
	return fakeEntity{}, false
}

func (s *fakeStore) linked(kind db.LinkKind, ownerID, targetID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[kind][[2]int64{ownerID, targetID}]
	return ok
}

func (s *fakeStore) linkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, pairs := range s.links {
		total += len(pairs)
	}
	return total
}

func matches(existing, attrs map[string]any, keys []string) bool {
	for _, key := range keys {
		a, b := existing[key], attrs[key]
		if at, ok := a.(time.Time); ok {
			bt, ok := b.(time.Time)
			if !ok || !at.Equal(bt) {
				return false
			}
			continue
		}
		if a != b {
			return false
		}
	}
	return true
}
