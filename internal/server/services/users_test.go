package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/imagex"
)

func TestProfile_NoPicture(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t, "a@x.com", "", "pw")

	acc, url, err := e.users.Profile(context.Background(), id, imagex.SizeOriginal)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", acc.Email)
	assert.Empty(t, url)

	_, _, err = e.users.Profile(context.Background(), "missing", imagex.SizeOriginal)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUploadProfilePicture_StoresVariantsAndReplacesOld(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	id := e.register(t, "a@x.com", "", "pw")
	img := pngImage(t, 64, 48)

	url, err := e.users.UploadProfilePicture(ctx, id, img, imagex.SizeThumb)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "mem://users/"+id+"/profile/2025/03/01/"), url)
	assert.True(t, strings.HasSuffix(url, "/thumb"), url)
	assert.Equal(t, len(imagex.Sizes), e.store.len())

	first, _, err := e.users.Profile(ctx, id, imagex.SizeOriginal)
	require.NoError(t, err)

	_, err = e.users.UploadProfilePicture(ctx, id, img, imagex.SizeOriginal)
	require.NoError(t, err)
	assert.Equal(t, len(imagex.Sizes), e.store.len())

	second, url, err := e.users.Profile(ctx, id, imagex.SizeLarge)
	require.NoError(t, err)
	assert.NotEqual(t, first.ProfilePicture, second.ProfilePicture)
	assert.Equal(t, "mem://"+second.ProfilePicture+"/large", url)
	for key := range e.store.objects {
		assert.True(t, strings.HasPrefix(key, second.ProfilePicture), key)
	}
}

func TestUploadProfilePicture_Rejects(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	id := e.register(t, "a@x.com", "", "pw")

	_, err := e.users.UploadProfilePicture(ctx, id, nil, imagex.SizeOriginal)
	assert.ErrorIs(t, err, common.ErrorBadRequest)

	_, err = e.users.UploadProfilePicture(ctx, id, []byte("plain text, not an image"), imagex.SizeOriginal)
	assert.ErrorIs(t, err, common.ErrorBadRequest)
	assert.Equal(t, "Invalid file type", common.Message(err))

	_, err = e.users.UploadProfilePicture(ctx, id, []byte("GIF89a......"), imagex.SizeOriginal)
	assert.ErrorIs(t, err, common.ErrorBadRequest)

	assert.Zero(t, e.store.len())
}

func TestUploadProfilePicture_StoreFailure(t *testing.T) {
	e := newTestEnv(t)
	id := e.register(t, "a@x.com", "", "pw")
	e.store.putErr = errBoom

	_, err := e.users.UploadProfilePicture(context.Background(), id, pngImage(t, 16, 16), imagex.SizeOriginal)
	assert.ErrorIs(t, err, errBoom)

	acc, _, err := e.users.Profile(context.Background(), id, imagex.SizeOriginal)
	require.NoError(t, err)
	assert.Empty(t, acc.ProfilePicture)
}

func TestUploadProfilePicture_UnknownAccountCleansUp(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.users.UploadProfilePicture(context.Background(), "missing", pngImage(t, 16, 16), imagex.SizeOriginal)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, e.store.len())
}

func TestDeleteAccount(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	id := e.register(t, "a@x.com", "", "pw")
	peer := e.register(t, "b@x.com", "", "pw")

	session, err := e.auth.Login(ctx, "a@x.com", "", "pw")
	require.NoError(t, err)
	_, err = e.users.UploadProfilePicture(ctx, id, pngImage(t, 16, 16), imagex.SizeOriginal)
	require.NoError(t, err)
	_, err = e.messages.Send(ctx, SendInput{SenderID: id, ReceiverID: peer, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, e.users.DeleteAccount(ctx, id, session.AccessToken))

	_, err = e.auth.Login(ctx, "a@x.com", "", "pw")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.auth.Authenticate(ctx, session.AccessToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.auth.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	msgs, err := e.repos.Messages(nil).ListConversation(ctx, id, peer, "", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, e.store.len())

	err = e.users.DeleteAccount(ctx, id, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
