package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hostel-inventory/apiserver/internal/mail"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User), nextID: 1}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) find(match func(types.User) bool) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := 1; id < f.nextID; id++ {
		if user, ok := f.users[id]; ok && match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]types.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) CreateRegistered(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	user.Role = types.RolePending
	if len(f.users) == 0 {
		user.Role = types.RoleWarden
	}
	f.mu.Unlock()
	return f.Create(ctx, user)
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) SetResetCode(_ context.Context, id int, code string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetCode = &code
	user.ResetCodeExpires = &expires
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) ClearResetCode(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetCode = nil
	user.ResetCodeExpires = nil
	f.users[id] = user
	return nil
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeRoomRepo struct {
	rooms  map[int]types.Room
	nextID int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[int]types.Room), nextID: 1}
}

func (f *fakeRoomRepo) List(_ context.Context) ([]types.Room, error) {
	rooms := make([]types.Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].HostelName != rooms[j].HostelName {
			return rooms[i].HostelName < rooms[j].HostelName
		}
		return rooms[i].RoomNumber < rooms[j].RoomNumber
	})
	return rooms, nil
}

func (f *fakeRoomRepo) Get(_ context.Context, id int) (types.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return types.Room{}, store.ErrNotFound
	}
	return room, nil
}

func (f *fakeRoomRepo) Create(_ context.Context, room types.Room) (types.Room, error) {
	for _, existing := range f.rooms {
		if existing.RoomNumber == room.RoomNumber {
			return types.Room{}, store.ErrConflict
		}
	}
	room.ID = f.nextID
	f.nextID++
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeRoomRepo) Update(_ context.Context, room types.Room) (types.Room, error) {
	if _, ok := f.rooms[room.ID]; !ok {
		return types.Room{}, store.ErrNotFound
	}
	for _, existing := range f.rooms {
		if existing.ID != room.ID && existing.RoomNumber == room.RoomNumber {
			return types.Room{}, store.ErrConflict
		}
	}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeRoomRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.rooms[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rooms, id)
	return nil
}

type fakeAssetRepo struct {
	assets  map[int]types.Asset
	nextID  int
	stale   bool
	updates int
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: make(map[int]types.Asset), nextID: 1}
}

func (f *fakeAssetRepo) List(_ context.Context, filter store.AssetFilter) ([]types.Asset, error) {
	assets := make([]types.Asset, 0)
	for _, asset := range f.assets {
		if filter.Condition != "" && asset.Condition != filter.Condition {
			continue
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (f *fakeAssetRepo) Get(_ context.Context, id int) (types.Asset, error) {
	asset, ok := f.assets[id]
	if !ok {
		return types.Asset{}, store.ErrNotFound
	}
	return asset, nil
}

func (f *fakeAssetRepo) Create(_ context.Context, asset types.Asset) (types.Asset, error) {
	asset.ID = f.nextID
	f.nextID++
	f.assets[asset.ID] = asset
	return asset, nil
}

func (f *fakeAssetRepo) Update(_ context.Context, asset types.Asset) (types.Asset, error) {
	if _, ok := f.assets[asset.ID]; !ok {
		return types.Asset{}, store.ErrNotFound
	}
	f.assets[asset.ID] = asset
	return asset, nil
}

func (f *fakeAssetRepo) SaveDamage(_ context.Context, asset types.Asset, previous int) (types.Asset, error) {
	current, ok := f.assets[asset.ID]
	if !ok || f.stale || current.DamagedQuantity != previous {
		return types.Asset{}, store.ErrConflict
	}
	f.updates++
	f.assets[asset.ID] = asset
	return asset, nil
}

func (f *fakeAssetRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.assets[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.assets, id)
	return nil
}

type fakeReportRepo struct {
	reports map[int]types.DamageReport
	nextID  int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[int]types.DamageReport), nextID: 1}
}

func (f *fakeReportRepo) List(_ context.Context, _ store.DamageReportFilter) ([]types.DamageReport, error) {
	reports := make([]types.DamageReport, 0, len(f.reports))
	for _, report := range f.reports {
		reports = append(reports, report)
	}
	return reports, nil
}

func (f *fakeReportRepo) Get(_ context.Context, id int) (types.DamageReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return types.DamageReport{}, store.ErrNotFound
	}
	return report, nil
}

func (f *fakeReportRepo) Create(_ context.Context, report types.DamageReport) (types.DamageReport, error) {
	report.ID = f.nextID
	f.nextID++
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeReportRepo) Update(_ context.Context, report types.DamageReport) (types.DamageReport, error) {
	if _, ok := f.reports[report.ID]; !ok {
		return types.DamageReport{}, store.ErrNotFound
	}
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeReportRepo) SetPhoto(_ context.Context, id int, key string) error {
	report, ok := f.reports[id]
	if !ok {
		return store.ErrNotFound
	}
	report.PhotoKey = &key
	f.reports[id] = report
	return nil
}

func (f *fakeReportRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.reports[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.reports, id)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}
