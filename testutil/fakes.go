package testutil

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/pubsub"
	"github.com/phillip/buildtogether-go/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemProperties is an in-memory property store with the same semantics as
// store.Properties, including the atomic conditional member append.
type MemProperties struct {
	mu    sync.Mutex
	props map[primitive.ObjectID]models.Property

	// Err, when set, is returned by every call.
	Err error
}

func NewMemProperties(seed ...models.Property) *MemProperties {
	m := &MemProperties{props: map[primitive.ObjectID]models.Property{}}
	for _, p := range seed {
		m.props[p.ID] = p
	}
	return m
}

func (m *MemProperties) Insert(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.props[p.ID] = clone(*p)
	return nil
}

func (m *MemProperties) List(_ context.Context, titleQuery string) ([]models.Property, error) {
	var re *regexp.Regexp
	if titleQuery != "" {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(titleQuery))
	}
	return m.filter(func(p models.Property) bool { return re == nil || re.MatchString(p.Title) })
}

func (m *MemProperties) ListForUser(_ context.Context, userID string) ([]models.Property, error) {
	return m.filter(func(p models.Property) bool { return p.HasBacker(userID) })
}

func (m *MemProperties) filter(keep func(models.Property) bool) ([]models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Property{}
	for _, p := range m.props {
		if keep(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemProperties) FindByID(_ context.Context, id primitive.ObjectID) (models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.Property{}, m.Err
	}
	p, ok := m.props[id]
	if !ok {
		return models.Property{}, store.ErrNotFound
	}
	return clone(p), nil
}

func (m *MemProperties) Exists(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.props[id]
	return ok, nil
}

func (m *MemProperties) AddMember(_ context.Context, id primitive.ObjectID, member models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.props[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.HasBacker(member.ID) {
		return store.ErrAlreadyMember
	}
	p.Members = append(p.Members, member)
	m.props[id] = p
	return nil
}

func (m *MemProperties) AppendChatMessage(_ context.Context, id primitive.ObjectID, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.props[id]
	if !ok {
		return store.ErrNotFound
	}
	p.ChatMessages = append(p.ChatMessages, msg)
	m.props[id] = p
	return nil
}

func (m *MemProperties) ChatMessages(ctx context.Context, id primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	p, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs := p.ChatMessages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Count returns the number of stored properties.
func (m *MemProperties) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.props)
}

func clone(p models.Property) models.Property {
	p.Images = append([]string{}, p.Images...)
	p.Admins = append([]models.ProjectUser{}, p.Admins...)
	p.Members = append([]models.Member{}, p.Members...)
	p.ChatMessages = append([]models.ChatMessage{}, p.ChatMessages...)
	return p
}

// MemUsers is an in-memory user store enforcing unique emails.
type MemUsers struct {
	mu    sync.Mutex
	users map[string]models.User
	Err   error
}

func NewMemUsers() *MemUsers {
	return &MemUsers{users: map[string]models.User{}}
}

func (m *MemUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := m.users[u.Email]; ok {
		return store.ErrEmailTaken
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.Email] = *u
	return nil
}

func (m *MemUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return models.User{}, m.Err
	}
	u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

// Published is one event captured by RecordingPublisher.
type Published struct {
	Channel string
	Event   pubsub.Event
}

// RecordingPublisher captures published events instead of sending them.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []Published
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, channel, name string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	r.Events = append(r.Events, Published{Channel: channel, Event: pubsub.Event{Name: name, Data: raw}})
	return nil
}

func (r *RecordingPublisher) All() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published{}, r.Events...)
}
