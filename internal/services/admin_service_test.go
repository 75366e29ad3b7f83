package services_test

import (
	"context"
	"strings"
	"testing"

	"raidentrack/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_ListUsers(t *testing.T) {
	f := newFixture()
	admins := services.NewAdminService(f.users, f.hasher, nil)
	f.register(t, "alice")
	f.register(t, "bob")

	users, err := admins.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAdminService_UpdateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admins := services.NewAdminService(f.users, f.hasher, nil)
	user := f.register(t, "alice")

	pw := "reset-me"
	promote := true
	updated, err := admins.UpdateUser(ctx, user.PublicID, services.UserUpdate{NewPassword: &pw, IsAdmin: &promote})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)

	_, err = f.auth.Login(ctx, "alice", "reset-me")
	assert.NoError(t, err)

	_, err = admins.UpdateUser(ctx, 1, services.UserUpdate{IsAdmin: &promote})
	assert.True(t, isKind(err, services.ErrNotFound))
	assert.Equal(t, "User not found", services.Reason(err))

	empty := ""
	_, err = admins.UpdateUser(ctx, user.PublicID, services.UserUpdate{NewPassword: &empty})
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, "alice", "reset-me")
	assert.NoError(t, err)

	long := strings.Repeat("ß", 40)
	_, err = admins.UpdateUser(ctx, user.PublicID, services.UserUpdate{NewPassword: &long})
	assert.True(t, isKind(err, services.ErrValidation))
	_, err = f.auth.Login(ctx, "alice", "reset-me")
	assert.NoError(t, err)
}

func TestAdminService_DeleteUserCascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	events := &fakePublisher{}
	admins := services.NewAdminService(f.users, f.hasher, events)
	predictions := services.NewPredictionService(f.imports, &fakeEngine{answer: "ok"}, nil)
	user := f.register(t, "alice")
	other := f.register(t, "bob")

	_, err := predictions.Predict(ctx, user, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	_, err = predictions.Predict(ctx, other, strings.NewReader(sampleCSV))
	require.NoError(t, err)

	deleted, err := admins.DeleteUser(ctx, user.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "alice", deleted.Username)

	_, err = f.users.FindByPublicID(ctx, user.PublicID)
	assert.Error(t, err)
	records, err := f.imports.ListByUser(ctx, user.PublicID)
	require.NoError(t, err)
	assert.Empty(t, records)
	records, err = f.imports.ListByUser(ctx, other.PublicID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Equal(t, []string{services.EventUserDeleted}, events.keys)

	_, err = admins.DeleteUser(ctx, user.PublicID)
	assert.True(t, isKind(err, services.ErrNotFound))
}

func TestAdminService_PreviewImport(t *testing.T) {
	admins := services.NewAdminService(nil, nil, nil)

	csv := "project_id,progress_percent,materials_used,workforce,days_elapsed,days_remaining\n" +
		"1,10,100,5,10,90\n2,20,200,6,20,80\n3,30,300,7,30,70\n4,40,400,8,40,60\n5,50,500,9,50,50\n6,60,600,10,60,40\n"
	preview, err := admins.PreviewImport(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "CSV imported successfully", preview.Message)
	assert.Equal(t, 6, preview.Rows)
	assert.Len(t, preview.Columns, 6)
	require.Len(t, preview.Preview, 5)
	assert.EqualValues(t, 1, preview.Preview[0]["project_id"])

	_, err = admins.PreviewImport(strings.NewReader("a,b\n1,2\n"))
	assert.True(t, isKind(err, services.ErrValidation))
	assert.Contains(t, services.Reason(err), "Expected columns")

	_, err = admins.PreviewImport(strings.NewReader(""))
	assert.True(t, isKind(err, services.ErrValidation))
}
