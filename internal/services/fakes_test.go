package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
	"github.com/disaster-training/training-registry/internal/storage"
)

var errStore = errors.New("store unavailable")

func adminPrincipal() *auth.Principal {
	return &auth.Principal{UserID: "admin-1", Email: "admin@example.org", Role: models.RoleAdmin}
}

func partnerPrincipal(orgID string) *auth.Principal {
	return &auth.Principal{UserID: "user-" + orgID, Email: orgID + "@example.org", Role: models.RolePartner, OrganizationID: orgID}
}

// fakeUsers and fakeOrgs share one in-memory account registry
type fakeAccounts struct {
	mu    sync.Mutex
	users map[string]*models.User
	orgs  map[string]*models.Organization
	seq   int
	err   error
	// lostRace makes the next Approve/Reject report no row changed
	lostRace bool
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: map[string]*models.User{}, orgs: map[string]*models.Organization{}}
}

// fakeID returns a UUID-shaped id that sorts in creation order
func fakeID(seq int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", seq)
}

func (f *fakeAccounts) nextID() string {
	f.seq++
	return fakeID(f.seq)
}

func (f *fakeAccounts) addUser(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = f.nextID()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeAccounts) addOrg(o *models.Organization) *models.Organization {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == "" {
		o.ID = f.nextID()
	}
	f.orgs[o.ID] = o
	return o
}

func (f *fakeAccounts) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeAccounts) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) RegisterPartner(_ context.Context, user *models.User, org *models.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.ID = f.nextID()
	org.ID = f.nextID()
	orgID := org.ID
	user.OrganizationID = &orgID
	org.UserID = user.ID
	f.users[user.ID] = user
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.orgs[id], nil
}

func (f *fakeAccounts) List(_ context.Context, filter repositories.OrganizationFilter, limit, offset int) ([]*models.Organization, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*models.Organization
	for _, o := range f.orgs {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	return window(out, limit, offset), total, nil
}

func (f *fakeAccounts) Approve(_ context.Context, id, adminID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	o := f.orgs[id]
	if f.lostRace || o == nil || o.Status != models.StatusPending {
		return false, nil
	}
	o.Status = models.StatusApproved
	o.ApprovedAt = &at
	o.ApprovedBy = &adminID
	if u := f.users[o.UserID]; u != nil {
		u.Status = models.AccountActive
	}
	return true, nil
}

func (f *fakeAccounts) Reject(_ context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	o := f.orgs[id]
	if f.lostRace || o == nil || o.Status != models.StatusPending {
		return false, nil
	}
	o.Status = models.StatusRejected
	o.RejectionReason = &reason
	return true, nil
}

// fakeTrainings is an in-memory TrainingStore
type fakeTrainings struct {
	mu         sync.Mutex
	trainings  map[string]*models.TrainingEvent
	seq        int
	err        error
	lostRace   bool
	lastFilter repositories.TrainingFilter
}

func newFakeTrainings() *fakeTrainings {
	return &fakeTrainings{trainings: map[string]*models.TrainingEvent{}}
}

func (f *fakeTrainings) add(t *models.TrainingEvent) *models.TrainingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		f.seq++
		t.ID = fakeID(f.seq)
	}
	f.trainings[t.ID] = t
	return t
}

func (f *fakeTrainings) Create(_ context.Context, t *models.TrainingEvent) error {
	if f.err != nil {
		return f.err
	}
	f.add(t)
	return nil
}

func (f *fakeTrainings) GetByID(_ context.Context, id string) (*models.TrainingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.trainings[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTrainings) GetWithPartner(ctx context.Context, id string) (*models.TrainingWithPartner, error) {
	t, err := f.GetByID(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	return &models.TrainingWithPartner{TrainingEvent: *t, Partner: models.PartnerSummary{OrganizationName: "Org " + t.PartnerID}}, nil
}

func (f *fakeTrainings) List(_ context.Context, filter repositories.TrainingFilter, limit, offset int) ([]*models.TrainingWithPartner, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*models.TrainingWithPartner
	for _, t := range f.trainings {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.PartnerID != "" && t.PartnerID != filter.PartnerID {
			continue
		}
		out = append(out, &models.TrainingWithPartner{TrainingEvent: *t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	return window(out, limit, offset), total, nil
}

func (f *fakeTrainings) UpdateContent(_ context.Context, t *models.TrainingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur, ok := f.trainings[t.ID]
	if !ok {
		return repositories.ErrNoRows
	}
	status, reason := cur.Status, cur.RejectionReason
	cp := *t
	cp.Status, cp.RejectionReason = status, reason
	f.trainings[t.ID] = &cp
	return nil
}

func (f *fakeTrainings) Approve(_ context.Context, id, adminID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	t := f.trainings[id]
	if f.lostRace || t == nil || t.Status != models.StatusPending {
		return false, nil
	}
	t.Status = models.StatusApproved
	t.ApprovedAt = &at
	t.ApprovedBy = &adminID
	t.RejectionReason = nil
	return true, nil
}

func (f *fakeTrainings) Reject(_ context.Context, id, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	t := f.trainings[id]
	if f.lostRace || t == nil || t.Status != models.StatusPending {
		return false, nil
	}
	t.Status = models.StatusRejected
	t.RejectionReason = &reason
	t.UpdatedAt = at
	return true, nil
}

func (f *fakeTrainings) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.trainings[id]; !ok {
		return repositories.ErrNoRows
	}
	delete(f.trainings, id)
	return nil
}

// fakeCertificates is an in-memory CertificateStore
type fakeCertificates struct {
	mu    sync.Mutex
	certs []*models.Certificate
	err   error
}

func (f *fakeCertificates) Create(_ context.Context, cert *models.Certificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, c := range f.certs {
		if c.CertificateID == cert.CertificateID {
			return repositories.ErrDuplicate
		}
	}
	cert.ID = fmt.Sprintf("cert-%d", len(f.certs)+1)
	f.certs = append(f.certs, cert)
	return nil
}

func (f *fakeCertificates) GetByCertificateID(_ context.Context, certificateID string) (*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.certs {
		if c.CertificateID == certificateID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCertificates) ListByTraining(_ context.Context, trainingID string) ([]*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.Certificate{}
	for _, c := range f.certs {
		if c.TrainingID == trainingID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeStorage is an in-memory storage.Storage
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	signs   bool
	// failOn makes Upload fail for keys ending in this suffix
	failOn    string
	uploadErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (*storage.UploadResult, error) {
	if f.uploadErr != nil && (f.failOn == "" || strings.HasSuffix(key, f.failOn)) {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return &storage.UploadResult{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (f *fakeStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) GetURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return fmt.Sprintf("https://media.example/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) GetMetadata(_ context.Context, key string) (*storage.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return &storage.FileMetadata{Key: key, Size: int64(len(data)), ContentType: f.types[key]}, nil
}

func (f *fakeStorage) SignsURLs() bool { return f.signs }

func (f *fakeStorage) Ping(context.Context) error { return nil }

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
