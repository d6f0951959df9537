package db

import (
	"sync"

	"github.com/ldi/pbltrack/pkg/models"
)

// StagedItems is a proposed plan: tasks, milestones and dependencies that are
// only written when the session is committed.
type StagedItems struct {
	Tasks        []*models.Task       `json:"tasks"`
	Milestones   []*models.Milestone  `json:"milestones"`
	Dependencies []*models.Dependency `json:"dependencies"`
}

func (s *StagedItems) Empty() bool {
	return len(s.Tasks) == 0 && len(s.Milestones) == 0 && len(s.Dependencies) == 0
}

// clone copies every staged item so the copy can be written without
// touching the originals.
func (s *StagedItems) clone() *StagedItems {
	c := &StagedItems{}
	for _, t := range s.Tasks {
		cp := *t
		c.Tasks = append(c.Tasks, &cp)
	}
	for _, m := range s.Milestones {
		cp := *m
		c.Milestones = append(c.Milestones, &cp)
	}
	for _, d := range s.Dependencies {
		cp := *d
		c.Dependencies = append(c.Dependencies, &cp)
	}
	return c
}

// StagingManager provides thread-safe in-memory storage for staged changes.
type StagingManager struct {
	mu     sync.RWMutex
	staged map[string]*StagedItems
}

func NewStagingManager() *StagingManager {
	return &StagingManager{
		staged: make(map[string]*StagedItems),
	}
}

func (sm *StagingManager) session(sessionID string) *StagedItems {
	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &StagedItems{}
	}
	return sm.staged[sessionID]
}

func (sm *StagingManager) AddTask(sessionID string, task *models.Task) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items := sm.session(sessionID)
	items.Tasks = append(items.Tasks, task)
}

func (sm *StagingManager) AddMilestone(sessionID string, m *models.Milestone) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items := sm.session(sessionID)
	items.Milestones = append(items.Milestones, m)
}

func (sm *StagingManager) AddDependency(sessionID string, dep *models.Dependency) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items := sm.session(sessionID)
	items.Dependencies = append(items.Dependencies, dep)
}

// GetAndClear removes and returns a session's staged items. An unknown
// session yields an empty, non-nil value.
func (sm *StagingManager) GetAndClear(sessionID string) *StagedItems {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &StagedItems{}
	}

	delete(sm.staged, sessionID)
	return items
}

// Restore puts items back in front of whatever was staged for the session
// since they were taken.
func (sm *StagingManager) Restore(sessionID string, items *StagedItems) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cur := sm.session(sessionID)
	cur.Tasks = append(append([]*models.Task(nil), items.Tasks...), cur.Tasks...)
	cur.Milestones = append(append([]*models.Milestone(nil), items.Milestones...), cur.Milestones...)
	cur.Dependencies = append(append([]*models.Dependency(nil), items.Dependencies...), cur.Dependencies...)
}

// Peek returns a copy of a session's staged items without clearing them.
func (sm *StagingManager) Peek(sessionID string) *StagedItems {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &StagedItems{}
	}

	return &StagedItems{
		Tasks:        append([]*models.Task(nil), items.Tasks...),
		Milestones:   append([]*models.Milestone(nil), items.Milestones...),
		Dependencies: append([]*models.Dependency(nil), items.Dependencies...),
	}
}
