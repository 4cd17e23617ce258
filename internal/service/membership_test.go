package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembership_Add_DefaultsToMember(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	ch := fx.group(alice, "ops")

	m, err := fx.membership.Add(ctx, alice, ch.ID, bob.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
	assert.False(t, m.IsGuest)
	assert.Equal(t, fx.now, m.JoinedAt)
}

func TestMembership_Add_GuestRoleSetsOriginFlag(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	ch := fx.group(alice, "ops")

	m, err := fx.membership.Add(ctx, alice, ch.ID, bob.UserID, models.RoleGuest)
	require.NoError(t, err)
	assert.Equal(t, models.RoleGuest, m.Role)
	assert.True(t, m.IsGuest)
}

func TestMembership_Add_Validation(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	ch := fx.group(alice, "ops")

	_, err := fx.membership.Add(ctx, alice, ch.ID, uuid.Nil, models.RoleMember)
	require.EqualError(t, err, "user_id is required")

	_, err = fx.membership.Add(ctx, alice, ch.ID, bob.UserID, "superuser")
	require.EqualError(t, err, "invalid role")

	_, err = fx.membership.Add(ctx, alice, ch.ID, bob.UserID, models.RoleMember)
	require.NoError(t, err)
	_, err = fx.membership.Add(ctx, alice, ch.ID, bob.UserID, models.RoleMember)
	require.EqualError(t, err, "already a member")
	assert.Equal(t, CodeBadRequest, CodeOf(err))
}

func TestMembership_Add_CannotGrantAboveOwnRole(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	carol := fx.actor("carol")
	dave := fx.actor("dave")
	ch := fx.group(alice, "ops", carol)

	_, err := fx.membership.ChangeRole(ctx, alice, ch.ID, carol.UserID, models.RoleAdmin)
	require.NoError(t, err)

	// An admin may seat members but not mint owners.
	_, err = fx.membership.Add(ctx, carol, ch.ID, dave.UserID, models.RoleOwner)
	require.EqualError(t, err, "cannot grant a role above your own")
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = fx.membership.Add(ctx, carol, ch.ID, dave.UserID, models.RoleAdmin)
	require.NoError(t, err)
}

func TestMembership_Add_RequiresAdmin(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	dave := fx.actor("dave")
	ch := fx.group(alice, "ops", bob)

	_, err := fx.membership.Add(ctx, bob, ch.ID, dave.UserID, models.RoleMember)
	require.EqualError(t, err, "insufficient role")
	assert.Equal(t, CodeForbidden, CodeOf(err))
}

func TestMembership_Remove_AdminGateAndRankOrder(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	carol := fx.actor("carol")
	ch := fx.group(alice, "ops", bob, carol)

	err := fx.membership.Remove(ctx, bob, ch.ID, carol.UserID)
	require.EqualError(t, err, "Only channel owners/admins can remove guests/members")
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = fx.membership.ChangeRole(ctx, alice, ch.ID, carol.UserID, models.RoleAdmin)
	require.NoError(t, err)

	err = fx.membership.Remove(ctx, carol, ch.ID, alice.UserID)
	require.EqualError(t, err, "cannot remove a member with a higher role")

	require.NoError(t, fx.membership.Remove(ctx, carol, ch.ID, bob.UserID))

	err = fx.membership.Remove(ctx, carol, ch.ID, bob.UserID)
	require.EqualError(t, err, "member not found")
	assert.Equal(t, CodeNotFound, CodeOf(err))

	msgs := fx.systemMessages(ch.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "carol removed bob from the channel", msgs[0].Content)
	assert.Equal(t, models.MessageKindSystem, msgs[0].Kind)
}

func TestMembership_Remove_SelfIsLeave(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	ch := fx.group(alice, "ops", bob)

	// Self-removal takes the leave path, so no admin requirement.
	require.NoError(t, fx.membership.Remove(ctx, bob, ch.ID, bob.UserID))

	members, err := fx.membership.List(ctx, alice, ch.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	msgs := fx.systemMessages(ch.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob left the channel", msgs[0].Content)
}

func TestMembership_Leave(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	mallory := fx.actor("mallory")
	ch := fx.group(alice, "ops", bob)

	err := fx.membership.Leave(ctx, mallory, ch.ID)
	require.EqualError(t, err, "not a channel member")
	assert.Equal(t, CodeForbidden, CodeOf(err))

	require.NoError(t, fx.membership.Leave(ctx, bob, ch.ID))
	msgs := fx.systemMessages(ch.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob left the channel", msgs[0].Content)

	// Re-adding a departed member starts a fresh membership.
	m, err := fx.membership.Add(ctx, alice, ch.ID, bob.UserID, models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
}

func TestMembership_ChangeRole_Rules(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	carol := fx.actor("carol")
	ch := fx.group(alice, "ops", bob, carol)

	_, err := fx.membership.ChangeRole(ctx, alice, ch.ID, bob.UserID, "superuser")
	require.EqualError(t, err, "invalid role")

	_, err = fx.membership.ChangeRole(ctx, alice, ch.ID, alice.UserID, models.RoleMember)
	require.EqualError(t, err, "cannot change your own role")
	assert.Equal(t, CodeBadRequest, CodeOf(err))

	_, err = fx.membership.ChangeRole(ctx, alice, ch.ID, carol.UserID, models.RoleAdmin)
	require.NoError(t, err)

	_, err = fx.membership.ChangeRole(ctx, carol, ch.ID, bob.UserID, models.RoleOwner)
	require.EqualError(t, err, "cannot grant a role above your own")

	_, err = fx.membership.ChangeRole(ctx, carol, ch.ID, alice.UserID, models.RoleMember)
	require.EqualError(t, err, "cannot change the role of a member with a higher role")

	_, err = fx.membership.ChangeRole(ctx, alice, ch.ID, uuid.New(), models.RoleAdmin)
	require.EqualError(t, err, "member not found")

	updated, err := fx.membership.ChangeRole(ctx, alice, ch.ID, bob.UserID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
}

func TestMembership_ChangeRole_GuestFlagSurvivesPromotion(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	guest := fx.actor("guest")
	ch := fx.group(alice, "ops")

	_, err := fx.membership.Add(ctx, alice, ch.ID, guest.UserID, models.RoleGuest)
	require.NoError(t, err)

	promoted, err := fx.membership.ChangeRole(ctx, alice, ch.ID, guest.UserID, models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, promoted.Role)
	assert.True(t, promoted.IsGuest, "guest origin outlives the role")
}

func TestMembership_List_ResolvesDisplayNames(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	mallory := fx.actor("mallory")
	ch := fx.group(alice, "ops", bob)

	_, err := fx.membership.List(ctx, mallory, ch.ID)
	require.EqualError(t, err, "not a channel member")

	roster, err := fx.membership.List(ctx, bob, ch.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "alice", roster[0].DisplayName)
	assert.Equal(t, "bob", roster[1].DisplayName)
}

func TestMembership_MarkRead(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.actor("alice")
	bob := fx.actor("bob")
	mallory := fx.actor("mallory")
	ch := fx.group(alice, "ops", bob)

	err := fx.membership.MarkRead(ctx, mallory, ch.ID)
	require.EqualError(t, err, "not a channel member")

	fx.advance(90 * time.Second)
	require.NoError(t, fx.membership.MarkRead(ctx, bob, ch.ID))

	roster, err := fx.membership.List(ctx, bob, ch.ID)
	require.NoError(t, err)
	for _, m := range roster {
		if m.UserID == bob.UserID {
			require.NotNil(t, m.LastReadAt)
			assert.Equal(t, fx.now, *m.LastReadAt)
		}
		if m.UserID == alice.UserID {
			assert.Nil(t, m.LastReadAt)
		}
	}
}
