package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

// memStore is one in-memory datastore shared by the per-interface fakes
// below, guarded by a single mutex so the transactional store contracts
// (DM uniqueness, invite redemption, call start and leave) stay atomic
// under concurrent use. Each fake mirrors the row-level behavior of its
// SQL counterpart, write-backs included.
type memStore struct {
	mu sync.Mutex

	channels     map[uuid.UUID]*models.Channel
	channelOrder []uuid.UUID
	dmKeys       map[string]uuid.UUID

	memberships []models.ChannelMembership

	invites     map[string]*models.ChannelInvite
	inviteOrder []string

	messages    map[int64]*models.Message
	nextMessage int64

	reactions []models.Reaction

	presence map[uuid.UUID]models.Presence

	calls        map[uuid.UUID]*models.Call
	participants []*models.CallParticipant
	nextPart     int64

	users map[uuid.UUID]models.User

	now func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		channels: make(map[uuid.UUID]*models.Channel),
		dmKeys:   make(map[string]uuid.UUID),
		invites:  make(map[string]*models.ChannelInvite),
		messages: make(map[int64]*models.Message),
		presence: make(map[uuid.UUID]models.Presence),
		calls:    make(map[uuid.UUID]*models.Call),
		users:    make(map[uuid.UUID]models.User),
		now:      now,
	}
}

func pairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}

func (db *memStore) insertChannelLocked(ch *models.Channel) {
	ch.ID = uuid.New()
	ch.CreatedAt = db.now()
	ch.UpdatedAt = ch.CreatedAt
	stored := *ch
	db.channels[ch.ID] = &stored
	db.channelOrder = append(db.channelOrder, ch.ID)
}

func (db *memStore) addMembershipLocked(m models.ChannelMembership) bool {
	for _, cur := range db.memberships {
		if cur.ChannelID == m.ChannelID && cur.UserID == m.UserID {
			return false
		}
	}
	m.JoinedAt = db.now()
	db.memberships = append(db.memberships, m)
	return true
}

func (db *memStore) membershipIndexLocked(channelID, userID uuid.UUID) int {
	for i, m := range db.memberships {
		if m.ChannelID == channelID && m.UserID == userID {
			return i
		}
	}
	return -1
}

// fakeChannels implements repository.ChannelStore.
type fakeChannels struct{ db *memStore }

func (f *fakeChannels) CreateDM(ctx context.Context, ch *models.Channel, userA, userB uuid.UUID) (*models.Channel, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	key := pairKey(userA, userB)
	if id, ok := f.db.dmKeys[key]; ok {
		existing := *f.db.channels[id]
		return &existing, true, nil
	}

	ch.Name = ""
	ch.Description = ""
	f.db.insertChannelLocked(ch)
	f.db.dmKeys[key] = ch.ID
	for _, uid := range []uuid.UUID{userA, userB} {
		f.db.addMembershipLocked(models.ChannelMembership{
			ChannelID: ch.ID, UserID: uid, Role: models.RoleMember,
		})
	}
	out := *ch
	return &out, false, nil
}

func (f *fakeChannels) CreateWithMembers(ctx context.Context, ch *models.Channel, members []models.ChannelMembership) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	f.db.insertChannelLocked(ch)
	for i := range members {
		members[i].ChannelID = ch.ID
		f.db.addMembershipLocked(members[i])
	}
	return nil
}

func (f *fakeChannels) CreateDealRoom(ctx context.Context, room, general *models.Channel, roomMembers, generalMembers []models.ChannelMembership) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	f.db.insertChannelLocked(room)
	general.ParentID = &room.ID
	f.db.insertChannelLocked(general)
	for i := range roomMembers {
		roomMembers[i].ChannelID = room.ID
		f.db.addMembershipLocked(roomMembers[i])
	}
	for i := range generalMembers {
		generalMembers[i].ChannelID = general.ID
		f.db.addMembershipLocked(generalMembers[i])
	}
	return nil
}

func (f *fakeChannels) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	ch, ok := f.db.channels[id]
	if !ok {
		return nil, nil
	}
	out := *ch
	return &out, nil
}

func (f *fakeChannels) ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Channel, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.Channel, 0)
	for i := len(f.db.channelOrder) - 1; i >= 0; i-- {
		id := f.db.channelOrder[i]
		if f.db.membershipIndexLocked(id, userID) >= 0 {
			out = append(out, *f.db.channels[id])
		}
	}
	return out, nil
}

func (f *fakeChannels) ListSubChannels(ctx context.Context, parentID uuid.UUID) ([]models.Channel, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.Channel, 0)
	for _, id := range f.db.channelOrder {
		ch := f.db.channels[id]
		if ch.ParentID != nil && *ch.ParentID == parentID {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (f *fakeChannels) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Channel, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	ch, ok := f.db.channels[id]
	if !ok {
		return nil, nil
	}
	if name != nil {
		ch.Name = *name
	}
	if description != nil {
		ch.Description = *description
	}
	ch.UpdatedAt = f.db.now()
	out := *ch
	return &out, nil
}

func (f *fakeChannels) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	ch, ok := f.db.channels[id]
	if !ok {
		return false, nil
	}
	ch.IsPinned = pinned
	ch.UpdatedAt = f.db.now()
	return true, nil
}

func (f *fakeChannels) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	if _, ok := f.db.channels[id]; !ok {
		return false, nil
	}

	// Cascade like the FK graph: the channel, its sub-channels, and
	// everything hanging off any of them.
	doomed := map[uuid.UUID]bool{id: true}
	for {
		grew := false
		for cid, ch := range f.db.channels {
			if doomed[cid] || ch.ParentID == nil || !doomed[*ch.ParentID] {
				continue
			}
			doomed[cid] = true
			grew = true
		}
		if !grew {
			break
		}
	}

	for cid := range doomed {
		delete(f.db.channels, cid)
	}
	order := f.db.channelOrder[:0]
	for _, cid := range f.db.channelOrder {
		if !doomed[cid] {
			order = append(order, cid)
		}
	}
	f.db.channelOrder = order
	for key, cid := range f.db.dmKeys {
		if doomed[cid] {
			delete(f.db.dmKeys, key)
		}
	}

	ms := f.db.memberships[:0]
	for _, m := range f.db.memberships {
		if !doomed[m.ChannelID] {
			ms = append(ms, m)
		}
	}
	f.db.memberships = ms

	for token, inv := range f.db.invites {
		if doomed[inv.ChannelID] {
			delete(f.db.invites, token)
		}
	}
	tokens := f.db.inviteOrder[:0]
	for _, token := range f.db.inviteOrder {
		if _, ok := f.db.invites[token]; ok {
			tokens = append(tokens, token)
		}
	}
	f.db.inviteOrder = tokens

	deadMsgs := map[int64]bool{}
	for mid, m := range f.db.messages {
		if doomed[m.ChannelID] {
			deadMsgs[mid] = true
			delete(f.db.messages, mid)
		}
	}
	rs := f.db.reactions[:0]
	for _, r := range f.db.reactions {
		if !deadMsgs[r.MessageID] {
			rs = append(rs, r)
		}
	}
	f.db.reactions = rs

	deadCalls := map[uuid.UUID]bool{}
	for callID, call := range f.db.calls {
		if doomed[call.ChannelID] {
			deadCalls[callID] = true
			delete(f.db.calls, callID)
		}
	}
	ps := f.db.participants[:0]
	for _, p := range f.db.participants {
		if !deadCalls[p.CallID] {
			ps = append(ps, p)
		}
	}
	f.db.participants = ps

	return true, nil
}

// fakeMembers implements repository.MembershipStore.
type fakeMembers struct{ db *memStore }

func (f *fakeMembers) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMembership, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	i := f.db.membershipIndexLocked(channelID, userID)
	if i < 0 {
		return nil, nil
	}
	out := f.db.memberships[i]
	return &out, nil
}

func (f *fakeMembers) Add(ctx context.Context, m *models.ChannelMembership) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.addMembershipLocked(*m), nil
}

func (f *fakeMembers) Remove(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	i := f.db.membershipIndexLocked(channelID, userID)
	if i < 0 {
		return false, nil
	}
	f.db.memberships = append(f.db.memberships[:i], f.db.memberships[i+1:]...)
	return true, nil
}

func (f *fakeMembers) UpdateRole(ctx context.Context, channelID, userID uuid.UUID, role models.Role) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	i := f.db.membershipIndexLocked(channelID, userID)
	if i < 0 {
		return false, nil
	}
	f.db.memberships[i].Role = role
	return true, nil
}

func (f *fakeMembers) List(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMembership, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.ChannelMembership, 0)
	for _, m := range f.db.memberships {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembers) MarkRead(ctx context.Context, channelID, userID uuid.UUID, at time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	i := f.db.membershipIndexLocked(channelID, userID)
	if i < 0 {
		return false, nil
	}
	stamp := at
	f.db.memberships[i].LastReadAt = &stamp
	return true, nil
}

// fakeInvites implements repository.InviteStore.
type fakeInvites struct{ db *memStore }

func (f *fakeInvites) Create(ctx context.Context, inv *models.ChannelInvite) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	inv.ID = uuid.New()
	inv.UsedCount = 0
	inv.IsActive = true
	inv.CreatedAt = f.db.now()
	stored := *inv
	f.db.invites[inv.Token] = &stored
	f.db.inviteOrder = append(f.db.inviteOrder, inv.Token)
	return nil
}

func (f *fakeInvites) GetByToken(ctx context.Context, token string) (*models.ChannelInvite, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	inv, ok := f.db.invites[token]
	if !ok {
		return nil, nil
	}
	out := *inv
	return &out, nil
}

func (f *fakeInvites) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.ChannelInvite, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.ChannelInvite, 0)
	for i := len(f.db.inviteOrder) - 1; i >= 0; i-- {
		inv := f.db.invites[f.db.inviteOrder[i]]
		if inv.ChannelID == channelID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvites) Deactivate(ctx context.Context, token string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	inv, ok := f.db.invites[token]
	if !ok {
		return false, nil
	}
	inv.IsActive = false
	return true, nil
}

func (f *fakeInvites) Redeem(ctx context.Context, token string, m *models.ChannelMembership, now time.Time) (repository.RedeemResult, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	if f.db.membershipIndexLocked(m.ChannelID, m.UserID) >= 0 {
		return repository.RedeemAlreadyMember, nil
	}
	inv, ok := f.db.invites[token]
	if !ok || !inv.Consumable(now) {
		return repository.RedeemNotConsumable, nil
	}

	stored := *m
	stored.JoinedAt = now
	f.db.memberships = append(f.db.memberships, stored)
	inv.UsedCount++
	return repository.RedeemJoined, nil
}

// fakeMessages implements repository.MessageStore.
type fakeMessages struct{ db *memStore }

func (f *fakeMessages) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	f.db.nextMessage++
	stored := *m
	stored.ID = f.db.nextMessage
	stored.CreatedAt = f.db.now()
	f.db.messages[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (f *fakeMessages) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	m, ok := f.db.messages[id]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (f *fakeMessages) ListByChannel(ctx context.Context, channelID uuid.UUID, beforeID int64, limit int) ([]models.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	ids := make([]int64, 0)
	for id, m := range f.db.messages {
		if m.ChannelID != channelID {
			continue
		}
		if beforeID != 0 && id > beforeID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := make([]models.Message, 0)
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, *f.db.messages[id])
	}
	return out, nil
}

func (f *fakeMessages) ListThread(ctx context.Context, parentID int64) ([]models.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	ids := make([]int64, 0)
	for id, m := range f.db.messages {
		if m.ReplyToID != nil && *m.ReplyToID == parentID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.Message, 0)
	for _, id := range ids {
		out = append(out, *f.db.messages[id])
	}
	return out, nil
}

func (f *fakeMessages) CountReplies(ctx context.Context, parentID int64) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	count := 0
	for _, m := range f.db.messages {
		if m.ReplyToID != nil && *m.ReplyToID == parentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessages) Edit(ctx context.Context, id int64, content string, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	if m, ok := f.db.messages[id]; ok {
		stamp := at
		m.Content = content
		m.EditedAt = &stamp
	}
	return nil
}

func (f *fakeMessages) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	if m, ok := f.db.messages[id]; ok && m.DeletedAt == nil {
		stamp := at
		m.DeletedAt = &stamp
	}
	return nil
}

func (f *fakeMessages) SetPinned(ctx context.Context, id int64, pinned bool) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	m, ok := f.db.messages[id]
	if !ok {
		return false, nil
	}
	m.IsPinned = pinned
	return true, nil
}

func (f *fakeMessages) ListPinned(ctx context.Context, channelID uuid.UUID) ([]models.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	ids := make([]int64, 0)
	for id, m := range f.db.messages {
		if m.ChannelID == channelID && m.IsPinned && m.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := make([]models.Message, 0)
	for _, id := range ids {
		out = append(out, *f.db.messages[id])
	}
	return out, nil
}

func (f *fakeMessages) AddReaction(ctx context.Context, r *models.Reaction) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for _, cur := range f.db.reactions {
		if cur.MessageID == r.MessageID && cur.UserID == r.UserID && cur.Emoji == r.Emoji {
			return false, nil
		}
	}
	stored := *r
	stored.CreatedAt = f.db.now()
	f.db.reactions = append(f.db.reactions, stored)
	return true, nil
}

func (f *fakeMessages) RemoveReaction(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for i, cur := range f.db.reactions {
		if cur.MessageID == messageID && cur.UserID == userID && cur.Emoji == emoji {
			f.db.reactions = append(f.db.reactions[:i], f.db.reactions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessages) ListReactions(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.Reaction, 0)
	for _, r := range f.db.reactions {
		if r.MessageID == messageID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakePresence implements repository.PresenceStore.
type fakePresence struct{ db *memStore }

func (f *fakePresence) Set(ctx context.Context, p *models.Presence) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	f.db.presence[p.UserID] = *p
	return nil
}

func (f *fakePresence) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]models.Presence, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.Presence, 0)
	for _, id := range userIDs {
		if p, ok := f.db.presence[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeCalls implements repository.CallStore.
type fakeCalls struct{ db *memStore }

func (f *fakeCalls) Start(ctx context.Context, call *models.Call, host *models.CallParticipant) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for _, cur := range f.db.calls {
		if cur.ChannelID == call.ChannelID && cur.Status == models.CallStatusOngoing {
			return false, nil
		}
	}

	call.ID = uuid.New()
	call.Status = models.CallStatusOngoing
	call.StartedAt = f.db.now()
	stored := *call
	f.db.calls[call.ID] = &stored

	host.CallID = call.ID
	f.db.nextPart++
	host.ID = f.db.nextPart
	host.JoinedAt = f.db.now()
	p := *host
	f.db.participants = append(f.db.participants, &p)
	return true, nil
}

func (f *fakeCalls) GetByID(ctx context.Context, id uuid.UUID) (*models.Call, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	call, ok := f.db.calls[id]
	if !ok {
		return nil, nil
	}
	out := *call
	return &out, nil
}

func (f *fakeCalls) GetOngoingByChannel(ctx context.Context, channelID uuid.UUID) (*models.Call, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for _, call := range f.db.calls {
		if call.ChannelID == channelID && call.Status == models.CallStatusOngoing {
			out := *call
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeCalls) AddParticipant(ctx context.Context, p *models.CallParticipant) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	call, ok := f.db.calls[p.CallID]
	if !ok || call.Status != models.CallStatusOngoing {
		return false, nil
	}
	for _, cur := range f.db.participants {
		if cur.CallID == p.CallID && cur.UserID == p.UserID && cur.LeftAt == nil {
			return false, nil
		}
	}

	f.db.nextPart++
	p.ID = f.db.nextPart
	p.JoinedAt = f.db.now()
	stored := *p
	f.db.participants = append(f.db.participants, &stored)
	return true, nil
}

func (f *fakeCalls) Leave(ctx context.Context, callID, userID uuid.UUID, now time.Time) (bool, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	call, ok := f.db.calls[callID]
	if !ok {
		return false, false, nil
	}

	left := false
	for _, p := range f.db.participants {
		if p.CallID == callID && p.UserID == userID && p.LeftAt == nil {
			stamp := now
			p.LeftAt = &stamp
			left = true
			break
		}
	}

	ended := f.endIfEmptyLocked(call, now)
	return left, ended, nil
}

func (f *fakeCalls) EndAll(ctx context.Context, callID uuid.UUID, now time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	call, ok := f.db.calls[callID]
	if !ok {
		return false, nil
	}
	for _, p := range f.db.participants {
		if p.CallID == callID && p.LeftAt == nil {
			stamp := now
			p.LeftAt = &stamp
		}
	}
	return f.endIfEmptyLocked(call, now), nil
}

func (f *fakeCalls) endIfEmptyLocked(call *models.Call, now time.Time) bool {
	if call.Status != models.CallStatusOngoing {
		return false
	}
	for _, p := range f.db.participants {
		if p.CallID == call.ID && p.LeftAt == nil {
			return false
		}
	}
	stamp := now
	call.Status = models.CallStatusEnded
	call.EndedAt = &stamp
	dur := int64(now.Sub(call.StartedAt) / time.Second)
	call.DurationSeconds = &dur
	return true
}

func (f *fakeCalls) SetMedia(ctx context.Context, callID, userID uuid.UUID, audio, video bool) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	for _, p := range f.db.participants {
		if p.CallID == callID && p.UserID == userID && p.LeftAt == nil {
			p.AudioEnabled = audio
			p.VideoEnabled = video
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCalls) ListParticipants(ctx context.Context, callID uuid.UUID) ([]models.CallParticipant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make([]models.CallParticipant, 0)
	for _, p := range f.db.participants {
		if p.CallID == callID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCalls) SetArtifacts(ctx context.Context, callID uuid.UUID, recordingURL, transcriptURL, summaryURL *string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	call, ok := f.db.calls[callID]
	if !ok {
		return nil
	}
	if recordingURL != nil {
		v := *recordingURL
		call.RecordingURL = &v
	}
	if transcriptURL != nil {
		v := *transcriptURL
		call.TranscriptURL = &v
	}
	if summaryURL != nil {
		v := *summaryURL
		call.SummaryURL = &v
	}
	return nil
}

// fakeUsers implements repository.UserStore.
type fakeUsers struct{ db *memStore }

func (f *fakeUsers) Upsert(ctx context.Context, u *models.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	stored := *u
	if cur, ok := f.db.users[u.ID]; ok {
		stored.CreatedAt = cur.CreatedAt
	} else {
		stored.CreatedAt = f.db.now()
	}
	stored.UpdatedAt = f.db.now()
	f.db.users[u.ID] = stored
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	u, ok := f.db.users[id]
	if !ok {
		return nil, nil
	}
	out := u
	return &out, nil
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	out := make(map[uuid.UUID]models.User, len(ids))
	for _, id := range ids {
		if u, ok := f.db.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// fakeBlobs records Put calls and hands back an in-memory URL.
type fakeBlobs struct {
	mu    sync.Mutex
	data  map[string][]byte
	types map[string]string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.data[key] = append([]byte(nil), data...)
	f.types[key] = contentType
	return "mem://" + key, nil
}

// fakePipeline records what got queued; err makes enqueueing fail.
type fakePipeline struct {
	mu       sync.Mutex
	err      error
	enqueued []enqueuedRecording
}

type enqueuedRecording struct {
	CallID       uuid.UUID
	RecordingURL string
}

func (f *fakePipeline) EnqueueProcessRecording(ctx context.Context, callID uuid.UUID, recordingURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, enqueuedRecording{CallID: callID, RecordingURL: recordingURL})
	return nil
}

// fixture wires every engine against the shared in-memory store with a
// controllable clock. Mutating fx.now between calls moves time for all
// engines at once.
type fixture struct {
	t   *testing.T
	db  *memStore
	now time.Time

	channels   *Channels
	membership *Membership
	invites    *Invites
	messages   *Messages
	presence   *Presence
	calls      *Calls

	blobs    *fakeBlobs
	pipeline *fakePipeline
}

func newFixture(t *testing.T) *fixture {
	fx := &fixture{
		t:   t,
		now: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return fx.now }
	fx.db = newMemStore(clock)

	channelStore := &fakeChannels{db: fx.db}
	memberStore := &fakeMembers{db: fx.db}
	inviteStore := &fakeInvites{db: fx.db}
	messageStore := &fakeMessages{db: fx.db}
	presenceStore := &fakePresence{db: fx.db}
	callStore := &fakeCalls{db: fx.db}
	userStore := &fakeUsers{db: fx.db}

	fx.blobs = newFakeBlobs()
	fx.pipeline = &fakePipeline{}

	logger := zap.NewNop()
	fx.channels = NewChannels(channelStore, memberStore, userStore, logger)
	fx.membership = NewMembership(channelStore, memberStore, userStore, messageStore, logger)
	fx.invites = NewInvites(channelStore, memberStore, inviteStore, userStore, messageStore, logger, "https://app.parley.dev")
	fx.messages = NewMessages(channelStore, memberStore, messageStore, logger)
	fx.presence = NewPresence(presenceStore, logger)
	fx.calls = NewCalls(channelStore, memberStore, callStore, fx.blobs, fx.pipeline, logger)

	fx.membership.now = clock
	fx.invites.now = clock
	fx.messages.now = clock
	fx.presence.now = clock
	fx.calls.now = clock

	return fx
}

// actor registers a directory user and returns the matching identity.
func (fx *fixture) actor(name string) Actor {
	id := uuid.New()
	fx.db.mu.Lock()
	fx.db.users[id] = models.User{
		ID:          id,
		DisplayName: name,
		Email:       name + "@example.com",
		CreatedAt:   fx.now,
		UpdatedAt:   fx.now,
	}
	fx.db.mu.Unlock()
	return Actor{UserID: id, DisplayName: name, Email: name + "@example.com"}
}

func (fx *fixture) advance(d time.Duration) {
	fx.now = fx.now.Add(d)
}

// group creates a group channel owned by the first actor with the rest
// as members, failing the test on error.
func (fx *fixture) group(owner Actor, name string, members ...Actor) *models.Channel {
	fx.t.Helper()
	ids := make([]uuid.UUID, 0, len(members))
	for _, a := range members {
		ids = append(ids, a.UserID)
	}
	ch, err := fx.channels.CreateGroup(context.Background(), owner, name, "", ids)
	if err != nil {
		fx.t.Fatalf("create group %q: %v", name, err)
	}
	return ch
}

// systemMessages returns the channel's system-kind messages, oldest
// first.
func (fx *fixture) systemMessages(channelID uuid.UUID) []models.Message {
	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()

	ids := make([]int64, 0)
	for id, m := range fx.db.messages {
		if m.ChannelID == channelID && m.Kind == models.MessageKindSystem {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *fx.db.messages[id])
	}
	return out
}

// ptr returns a pointer to v, for optional scalar arguments.
func ptr[T any](v T) *T { return &v }
