package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/argusai/pairing-server-go/internal/database"
	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/notify"
	"github.com/argusai/pairing-server-go/internal/ratelimit"
	"github.com/argusai/pairing-server-go/internal/repository"
)

// fakeTxRunner runs the transaction body directly; the fake repositories
// ignore the tx handle.
type fakeTxRunner struct {
	err error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type fakeDeviceRepo struct {
	devices        map[string]*model.Device
	confirmedIDs   []string
	touchedIDs     []string
	markConfirmErr error
}

func newFakeDeviceRepo(devices ...*model.Device) *fakeDeviceRepo {
	repo := &fakeDeviceRepo{devices: make(map[string]*model.Device)}
	for _, d := range devices {
		repo.devices[d.ID] = d
	}
	return repo
}

func (f *fakeDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	return f.devices[id], nil
}

func (f *fakeDeviceRepo) MarkPairingConfirmed(ctx context.Context, id string) error {
	if f.markConfirmErr != nil {
		return f.markConfirmErr
	}
	f.confirmedIDs = append(f.confirmedIDs, id)
	return nil
}

func (f *fakeDeviceRepo) TouchLastSeen(ctx context.Context, id string) error {
	f.touchedIDs = append(f.touchedIDs, id)
	return nil
}

type fakeTokenRepo struct {
	mu           sync.Mutex
	rows         map[string]*model.RefreshToken
	nextID       int
	revokeDenied bool
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{rows: make(map[string]*model.RefreshToken)}
}

func (f *fakeTokenRepo) Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row := &model.RefreshToken{
		ID:        fmt.Sprintf("rt-%d", f.nextID),
		DeviceID:  params.DeviceID,
		TokenHash: params.TokenHash,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now().Add(time.Duration(f.nextID) * time.Millisecond),
	}
	f.rows[row.ID] = row
	return copyToken(row), nil
}

func (f *fakeTokenRepo) FindActive(ctx context.Context, tokenHash, deviceID string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.TokenHash == tokenHash && row.DeviceID == deviceID &&
			row.RevokedAt == nil && row.ExpiresAt.After(time.Now()) {
			return copyToken(row), nil
		}
	}
	return nil, nil
}

func (f *fakeTokenRepo) FindByHash(ctx context.Context, tokenHash, deviceID string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.TokenHash == tokenHash && row.DeviceID == deviceID {
			return copyToken(row), nil
		}
	}
	return nil, nil
}

func (f *fakeTokenRepo) FindActiveByDevice(ctx context.Context, deviceID string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var active []*model.RefreshToken
	for _, row := range f.rows {
		if row.DeviceID == deviceID && row.RevokedAt == nil && row.ExpiresAt.After(time.Now()) {
			active = append(active, row)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return copyToken(active[0]), nil
}

func (f *fakeTokenRepo) Revoke(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeDenied {
		return false, nil
	}
	row, ok := f.rows[id]
	if !ok || row.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	row.RevokedAt = &now
	return true, nil
}

func (f *fakeTokenRepo) SetReplacedBy(ctx context.Context, id, replacedByID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.ReplacedBy = &replacedByID
	}
	return nil
}

func (f *fakeTokenRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	// fake schema knowledge: device IDs are prefixed with their owner
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	now := time.Now()
	for _, row := range f.rows {
		if row.RevokedAt == nil && deviceOwner(row.DeviceID) == userID {
			row.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepo) RevokeAllForDevice(ctx context.Context, deviceID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	now := time.Now()
	for _, row := range f.rows {
		if row.RevokedAt == nil && row.DeviceID == deviceID {
			row.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepo) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, row := range f.rows {
		if row.RevokedAt != nil && row.RevokedAt.Before(cutoff) {
			delete(f.rows, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepo) WithTx(tx *sqlx.Tx) repository.RefreshTokenRepository {
	return f
}

func (f *fakeTokenRepo) get(id string) *model.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyToken(f.rows[id])
}

func (f *fakeTokenRepo) setRevokedAt(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.RevokedAt = &at
	}
}

func (f *fakeTokenRepo) activeCount(deviceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows {
		if row.DeviceID == deviceID && row.RevokedAt == nil && row.ExpiresAt.After(time.Now()) {
			count++
		}
	}
	return count
}

func (f *fakeTokenRepo) findByHash(tokenHash string) *model.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.TokenHash == tokenHash {
			return copyToken(row)
		}
	}
	return nil
}

func copyToken(row *model.RefreshToken) *model.RefreshToken {
	if row == nil {
		return nil
	}
	cp := *row
	return &cp
}

// deviceOwner maps fake device IDs of the form "<user>/<device>" to the user.
func deviceOwner(deviceID string) string {
	for i := 0; i < len(deviceID); i++ {
		if deviceID[i] == '/' {
			return deviceID[:i]
		}
	}
	return ""
}

type fakePairingCodeRepo struct {
	mu         sync.Mutex
	rows       map[string]*model.PairingCode
	collisions int
	inserts    int
}

func newFakePairingCodeRepo() *fakePairingCodeRepo {
	return &fakePairingCodeRepo{rows: make(map[string]*model.PairingCode)}
}

func (f *fakePairingCodeRepo) Insert(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.collisions > 0 {
		f.collisions--
		return nil, nil
	}
	if _, exists := f.rows[params.Code]; exists {
		return nil, nil
	}
	row := &model.PairingCode{
		Code:       params.Code,
		DeviceID:   params.DeviceID,
		Platform:   params.Platform,
		DeviceName: params.DeviceName,
		ExpiresAt:  params.ExpiresAt,
		CreatedAt:  time.Now(),
	}
	f.rows[params.Code] = row
	return copyCode(row), nil
}

func (f *fakePairingCodeRepo) Confirm(ctx context.Context, code, userID string) (*model.PairingCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[code]
	if !ok || row.ConfirmedAt != nil || !row.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	now := time.Now()
	row.UserID = &userID
	row.ConfirmedAt = &now
	return copyCode(row), nil
}

func (f *fakePairingCodeRepo) ConsumeConfirmed(ctx context.Context, code string) (*model.PairingCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[code]
	if !ok || row.ConfirmedAt == nil || !row.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	delete(f.rows, code)
	return copyCode(row), nil
}

func (f *fakePairingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for code, row := range f.rows {
		if row.ExpiresAt.Before(time.Now()) {
			delete(f.rows, code)
			count++
		}
	}
	return count, nil
}

func (f *fakePairingCodeRepo) get(code string) *model.PairingCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyCode(f.rows[code])
}

func copyCode(row *model.PairingCode) *model.PairingCode {
	if row == nil {
		return nil
	}
	cp := *row
	return &cp
}

type fakeLimiter struct {
	decision ratelimit.Decision
	keys     []string
}

func (f *fakeLimiter) Check(ctx context.Context, key string) ratelimit.Decision {
	f.keys = append(f.keys, key)
	return f.decision
}

func allowAll() *fakeLimiter {
	return &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 4}}
}

type fakeNotifier struct {
	mu        sync.Mutex
	requested []notify.PairingSummary
	completed []notify.PairingSummary
}

func (f *fakeNotifier) PublishPairingRequested(ctx context.Context, userID string, summary notify.PairingSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, summary)
	return nil
}

func (f *fakeNotifier) PublishPairingComplete(ctx context.Context, userID string, summary notify.PairingSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, summary)
	return nil
}

func (f *fakeNotifier) requestedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requested)
}

func (f *fakeNotifier) lastRequested() (notify.PairingSummary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requested) == 0 {
		return notify.PairingSummary{}, false
	}
	return f.requested[len(f.requested)-1], true
}

type fakeUserRepo struct {
	users map[string]*model.User // keyed by id
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session // keyed by token hash
	nextID   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[tokenHash]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (f *fakeSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	session := &model.Session{
		ID:        fmt.Sprintf("sess-%d", f.nextID),
		UserID:    params.UserID,
		TokenHash: params.TokenHash,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now(),
	}
	f.sessions[params.TokenHash] = session
	cp := *session
	return &cp, nil
}

func (f *fakeSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for hash, session := range f.sessions {
		if session.ExpiresAt.Before(time.Now()) {
			delete(f.sessions, hash)
			count++
		}
	}
	return count, nil
}
