package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryFile struct {
	details FileDetails
}

// MemoryStore keeps everything in process memory. It is the default store
// for single-shot CLI runs and the store used by tests.
type MemoryStore struct {
	mu sync.RWMutex

	nextScanID      int64
	nextFileID      int64
	nextComponentID int64
	nextEdgeID      int64

	scans      map[int64]*Scan
	files      map[int64]*memoryFile
	members    map[int64][]int64 // scan ID -> file IDs
	components map[int64]Component

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans:      make(map[int64]*Scan),
		files:      make(map[int64]*memoryFile),
		members:    make(map[int64][]int64),
		components: make(map[int64]Component),
		now:        time.Now,
	}
}

func (s *MemoryStore) FindScanByChecksum(_ context.Context, projectID, checksum string) (*Scan, error) {
	projectID = strings.TrimSpace(projectID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Scan
	for _, sc := range s.scans {
		if sc.ProjectID != projectID || sc.Checksum != checksum || sc.Status != ScanSuccess {
			continue
		}
		if found == nil || sc.ID > found.ID {
			found = sc
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return copyScan(found), nil
}

func (s *MemoryStore) FindFileByChecksum(_ context.Context, projectID, path, checksum string) (int64, error) {
	projectID = strings.TrimSpace(projectID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found int64
	for id, mf := range s.files {
		f := mf.details.File
		if f.ProjectID != projectID || f.Path != path || f.Checksum != checksum {
			continue
		}
		owner, ok := s.scans[f.ScanID]
		if !ok || owner.Status != ScanSuccess {
			continue
		}
		if id > found {
			found = id
		}
	}
	if found == 0 {
		return 0, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) CreateScan(_ context.Context, projectID, checksum string) (*Scan, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextScanID++
	sc := &Scan{
		ID:        s.nextScanID,
		ProjectID: projectID,
		Checksum:  checksum,
		Status:    ScanRunning,
		StartedAt: s.now().UTC(),
	}
	s.scans[sc.ID] = sc
	return copyScan(sc), nil
}

func (s *MemoryStore) LinkFile(_ context.Context, scanID, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.runningScanLocked(scanID)
	if err != nil {
		return err
	}
	mf, ok := s.files[fileID]
	if !ok {
		return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	if mf.details.File.ProjectID != sc.ProjectID {
		return fmt.Errorf("file %d belongs to project %q, not %q", fileID, mf.details.File.ProjectID, sc.ProjectID)
	}
	s.addMemberLocked(sc, fileID)
	return nil
}

func (s *MemoryStore) SaveFile(_ context.Context, scanID int64, nf NewFile) (*File, error) {
	if err := validateNewFile(nf); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.runningScanLocked(scanID)
	if err != nil {
		return nil, err
	}

	s.nextFileID++
	file := File{
		ID:        s.nextFileID,
		ProjectID: sc.ProjectID,
		ScanID:    sc.ID,
		Path:      nf.Path,
		Language:  nf.Language,
		Checksum:  nf.Checksum,
		CreatedAt: s.now().UTC(),
	}

	fa := nf.Analysis
	details := FileDetails{
		File:      file,
		Usages:    append(fa.Usages[:0:0], fa.Usages...),
		Imports:   append(fa.Imports[:0:0], fa.Imports...),
		Exports:   append(fa.Exports[:0:0], fa.Exports...),
		Functions: append(fa.Functions[:0:0], fa.Functions...),
	}

	global := make(map[int]Component, len(fa.Components))
	for _, c := range fa.Components {
		s.nextComponentID++
		rec := Component{
			ID:              s.nextComponentID,
			FileID:          file.ID,
			LocalID:         c.LocalID,
			Name:            c.Name,
			Kind:            c.Kind,
			IsDefaultExport: c.IsDefaultExport,
			Line:            c.Line,
		}
		global[c.LocalID] = rec
		details.Components = append(details.Components, rec)
		s.components[rec.ID] = rec
	}
	for _, e := range nf.Edges {
		s.nextEdgeID++
		parent, child := global[e.Parent], global[e.Child]
		details.Edges = append(details.Edges, Edge{
			ID:         s.nextEdgeID,
			FileID:     file.ID,
			ParentID:   parent.ID,
			ChildID:    child.ID,
			ParentName: parent.Name,
			ChildName:  child.Name,
		})
	}

	s.files[file.ID] = &memoryFile{details: details}
	s.addMemberLocked(sc, file.ID)
	return &file, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, scanID int64, failure FileFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.runningScanLocked(scanID)
	if err != nil {
		return err
	}
	sc.Failures = append(sc.Failures, failure)
	return nil
}

func (s *MemoryStore) CompleteScan(_ context.Context, scanID int64, checksum string) (*Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.runningScanLocked(scanID)
	if err != nil {
		return nil, err
	}
	finished := s.now().UTC()
	sc.Checksum = checksum
	sc.Status = ScanSuccess
	sc.FinishedAt = &finished
	return copyScan(sc), nil
}

func (s *MemoryStore) AbortScan(_ context.Context, scanID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.runningScanLocked(scanID); err != nil {
		return err
	}
	for id, mf := range s.files {
		if mf.details.File.ScanID != scanID {
			continue
		}
		for _, c := range mf.details.Components {
			delete(s.components, c.ID)
		}
		delete(s.files, id)
	}
	delete(s.members, scanID)
	delete(s.scans, scanID)
	return nil
}

func (s *MemoryStore) GetScan(_ context.Context, scanID int64) (*Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scans[scanID]
	if !ok {
		return nil, fmt.Errorf("scan %d: %w", scanID, ErrNotFound)
	}
	return copyScan(sc), nil
}

func (s *MemoryStore) ListScans(_ context.Context, projectID string) ([]Scan, error) {
	projectID = strings.TrimSpace(projectID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Scan, 0, 8)
	for _, sc := range s.scans {
		if sc.ProjectID == projectID {
			out = append(out, *copyScan(sc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) LatestScan(_ context.Context, projectID string) (*Scan, error) {
	projectID = strings.TrimSpace(projectID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Scan
	for _, sc := range s.scans {
		if sc.ProjectID != projectID || sc.Status != ScanSuccess {
			continue
		}
		if latest == nil || sc.ID > latest.ID {
			latest = sc
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("project %q has no successful scan: %w", projectID, ErrNotFound)
	}
	return copyScan(latest), nil
}

func (s *MemoryStore) ListFiles(_ context.Context, scanID int64) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listFilesLocked(scanID)
}

func (s *MemoryStore) listFilesLocked(scanID int64) ([]File, error) {
	if _, ok := s.scans[scanID]; !ok {
		return nil, fmt.Errorf("scan %d: %w", scanID, ErrNotFound)
	}
	files := make([]File, 0, len(s.members[scanID]))
	for _, id := range s.members[scanID] {
		files = append(files, s.files[id].details.File)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *MemoryStore) GetFile(_ context.Context, fileID int64) (*FileDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mf, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	return mf.details.Clone(), nil
}

func (s *MemoryStore) GetComponent(_ context.Context, componentID int64) (*Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.components[componentID]
	if !ok {
		return nil, fmt.Errorf("component %d: %w", componentID, ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) ListComponents(_ context.Context, scanID int64) ([]Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.listFilesLocked(scanID)
	if err != nil {
		return nil, err
	}

	out := make([]Component, 0, len(files)*2)
	for _, f := range files {
		out = append(out, s.files[f.ID].details.Components...)
	}
	return out, nil
}

func (s *MemoryStore) ListEdges(_ context.Context, scanID int64) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.listFilesLocked(scanID)
	if err != nil {
		return nil, err
	}

	out := make([]Edge, 0, len(files))
	for _, f := range files {
		out = append(out, s.files[f.ID].details.Edges...)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) runningScanLocked(scanID int64) (*Scan, error) {
	sc, ok := s.scans[scanID]
	if !ok {
		return nil, fmt.Errorf("scan %d: %w", scanID, ErrNotFound)
	}
	if sc.Status != ScanRunning {
		return nil, fmt.Errorf("scan %d is %s: %w", scanID, sc.Status, ErrInvalidTransition)
	}
	return sc, nil
}

func (s *MemoryStore) addMemberLocked(sc *Scan, fileID int64) {
	for _, id := range s.members[sc.ID] {
		if id == fileID {
			return
		}
	}
	s.members[sc.ID] = append(s.members[sc.ID], fileID)
	sc.FileCount = len(s.members[sc.ID])
}

func copyScan(sc *Scan) *Scan {
	out := *sc
	out.Failures = append([]FileFailure(nil), sc.Failures...)
	if sc.FinishedAt != nil {
		t := *sc.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
