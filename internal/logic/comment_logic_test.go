package logic

import (
	"context"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/database/dbtest"
	"github.com/blues/campaignhub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments_AuthorOnly(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCommentLogic(db)
	author := seedUser(t, db, "author@example.com", false, false)
	other := seedUser(t, db, "other@example.com", false, false)
	c := seedFundingCampaign(t, db, author, 1000, time.Now().Add(time.Hour))

	_, err := l.CreateComment(author, c.Id, "")
	requireKind(t, err, KindValidation)
	_, err = l.CreateComment(author, 999, "hi")
	requireKind(t, err, KindNotFound)

	comment, err := l.CreateComment(author, c.Id, "first")
	require.NoError(t, err)

	_, err = l.UpdateComment(other, comment.Id, "hijack")
	requireKind(t, err, KindForbidden)
	updated, err := l.UpdateComment(author, comment.Id, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	list, total, err := l.ListComments(c.Id, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	requireKind(t, l.DeleteComment(other, comment.Id), KindForbidden)
	require.NoError(t, l.DeleteComment(author, comment.Id))
}

func TestReviews_OnlyAfterCampaignEnds(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCommentLogic(db)
	author := seedUser(t, db, "author@example.com", false, false)
	c := seedFundingCampaign(t, db, author, 1000, time.Now().Add(time.Hour))
	req := &ReviewRequest{Title: "recap", Content: "it went well"}

	_, err := l.CreateReview(author, c.Id, req)
	requireKind(t, err, KindValidation)

	require.NoError(t, db.Model(&model.CampaignModel{}).Where("id = ?", c.Id).
		Update("status", model.CampaignStatusEnded).Error)
	review, err := l.CreateReview(author, c.Id, req)
	require.NoError(t, err)

	mine, err := l.ListUserReviews(author.Id)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, review.Id, mine[0].Id)
}

func TestNotifications(t *testing.T) {
	db := dbtest.Open(t)
	pub := &recordingPublisher{}
	n := NewNotificationLogic(db, pub)
	user := seedUser(t, db, "user@example.com", false, false)
	seedUser(t, db, "staff@example.com", true, false)

	sent, err := n.NotifyStaff(context.Background(), "new message")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Equal(t, 1, pub.count())
	assert.Equal(t, broker.EventNotificationCreated, pub.events[0].(broker.NotificationEvent).Type)

	for i := 0; i < 8; i++ {
		_, err := n.CreateTx(db, []int64{user.Id}, "hello")
		require.NoError(t, err)
	}
	page, total, err := n.ListNotifications(user.Id, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	assert.Len(t, page, PageSizeNotification)

	deleted, err := n.DeleteAll(user.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(8), deleted)
}
