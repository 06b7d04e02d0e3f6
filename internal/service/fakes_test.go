package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/internal/repository"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
)

// memoryDirectory backs both user and role lookups the way the joined SQL does.
type memoryDirectory struct {
	mu        sync.Mutex
	users     map[string]*models.User
	roles     map[string]*models.Role
	nextUser  int64
	nextRole  int64
	createErr error
}

func newMemoryDirectory(roles ...models.Role) *memoryDirectory {
	d := &memoryDirectory{users: map[string]*models.User{}, roles: map[string]*models.Role{}}
	for _, r := range roles {
		r := r
		d.nextRole++
		r.ID = d.nextRole
		d.roles[r.Name] = &r
	}
	return d
}

func (d *memoryDirectory) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	for _, r := range d.roles {
		if r.ID == u.RoleID {
			clone.Role = *r
		}
	}
	return &clone, nil
}

func (d *memoryDirectory) FindByID(ctx context.Context, id int64) (*models.User, error) {
	d.mu.Lock()
	var name string
	for _, u := range d.users {
		if u.ID == id {
			name = u.Username
		}
	}
	d.mu.Unlock()
	if name == "" {
		return nil, sql.ErrNoRows
	}
	return d.FindByUsername(ctx, name)
}

func (d *memoryDirectory) Create(ctx context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return d.createErr
	}
	if _, ok := d.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	d.nextUser++
	user.ID = d.nextUser
	user.RoleID = user.Role.ID
	stored := *user
	d.users[user.Username] = &stored
	return nil
}

func (d *memoryDirectory) UpdateRole(ctx context.Context, userID, roleID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == userID {
			u.RoleID = roleID
			return nil
		}
	}
	return sql.ErrNoRows
}

type memoryRoles struct{ *memoryDirectory }

func (r memoryRoles) FindByName(ctx context.Context, name string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *role
	return &clone, nil
}

func (r memoryRoles) Create(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.Name]; ok {
		return repository.ErrDuplicate
	}
	r.nextRole++
	role.ID = r.nextRole
	stored := *role
	r.roles[role.Name] = &stored
	return nil
}

type memoryTasks struct {
	mu        sync.Mutex
	tasks     map[int64]*models.IngestionTask
	createErr error
	reads     int
}

func newMemoryTasks() *memoryTasks {
	return &memoryTasks{tasks: map[int64]*models.IngestionTask{}}
}

func (m *memoryTasks) Create(ctx context.Context, task *models.IngestionTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.tasks[task.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := *task
	m.tasks[task.ID] = &stored
	return nil
}

func (m *memoryTasks) FindByID(ctx context.Context, id int64) (*models.IngestionTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (m *memoryTasks) UpdateStatus(ctx context.Context, id int64, status models.TaskStatus, updatedAt time.Time) (*models.IngestionTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = updatedAt
	clone := *t
	return &clone, nil
}

func (m *memoryTasks) storeReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	setErr  error
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) expire(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

var errBoom = errors.New("boom")

type memoryDocuments struct {
	mu        sync.Mutex
	docs      map[int64]*models.Document
	next      int64
	createErr error
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: map[int64]*models.Document{}}
}

func (m *memoryDocuments) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.next++
	doc.ID = m.next
	stored := *doc
	m.docs[doc.ID] = &stored
	return nil
}

func (m *memoryDocuments) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *d
	return &clone, nil
}

func (m *memoryDocuments) FindByName(ctx context.Context, name string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Document
	for _, d := range m.docs {
		if d.DocumentName == name && (found == nil || d.ID < found.ID) {
			found = d
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	clone := *found
	return &clone, nil
}

func (m *memoryDocuments) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.docs, id)
	return nil
}
