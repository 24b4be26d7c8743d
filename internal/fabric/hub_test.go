package fabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"browserctl/pkg/models"
)

func newTestSubscription(channel string) *models.Subscription {
	return newTestSubscriptionFiltered(channel, nil)
}

func newTestSubscriptionFiltered(channel string, filters map[string]string) *models.Subscription {
	return &models.Subscription{ID: "sub-" + channel, Channel: channel, Filters: filters, CreatedAt: time.Now()}
}

func TestChannelMatchExact(t *testing.T) {
	assert.True(t, channelMatch("session:events", "session:events"))
	assert.False(t, channelMatch("session:events", "browser:click"))
}

func TestChannelMatchWildcard(t *testing.T) {
	assert.True(t, channelMatch("browser:*", "browser:click"))
	assert.True(t, channelMatch("browser:*", "browser:"))
	assert.False(t, channelMatch("browser:*", "session:events"))
}

func TestFilterMatchEmptyAcceptsEverything(t *testing.T) {
	assert.True(t, filterMatch(nil, Event{SessionID: "s1"}))
	assert.True(t, filterMatch(map[string]string{}, Event{SessionID: "s1"}))
}

func TestFilterMatchSessionID(t *testing.T) {
	filters := map[string]string{"sessionId": "s1"}
	assert.True(t, filterMatch(filters, Event{SessionID: "s1"}))
	assert.False(t, filterMatch(filters, Event{SessionID: "s2"}))
}

func TestFilterMatchUserID(t *testing.T) {
	filters := map[string]string{"userId": "u1"}
	assert.True(t, filterMatch(filters, Event{UserID: "u1"}))
	assert.False(t, filterMatch(filters, Event{UserID: "u2"}))
}

func TestFilterMatchBothFieldsMustAgree(t *testing.T) {
	filters := map[string]string{"sessionId": "s1", "userId": "u1"}
	assert.True(t, filterMatch(filters, Event{SessionID: "s1", UserID: "u1"}))
	assert.False(t, filterMatch(filters, Event{SessionID: "s1", UserID: "u2"}))
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	h := newHub()
	c := &Connection{sendCh: make(chan Event, 4)}
	h.register(c)
	assert.Equal(t, 1, h.connectionCount())

	sub := newTestSubscription("browser:*")
	h.subscribe(c, sub)
	assert.Equal(t, 1, h.subscriptionCount())

	assert.True(t, h.unsubscribe(c, sub.ID))
	assert.Equal(t, 0, h.subscriptionCount())
	assert.False(t, h.unsubscribe(c, sub.ID))

	h.unregister(c)
	assert.Equal(t, 0, h.connectionCount())
}

func TestHubPublishDeliversOnlyToMatchingSubscribers(t *testing.T) {
	h := newHub()
	matching := &Connection{sendCh: make(chan Event, 4)}
	other := &Connection{sendCh: make(chan Event, 4)}
	h.register(matching)
	h.register(other)

	h.subscribe(matching, newTestSubscription("browser:*"))
	h.subscribe(other, newTestSubscriptionFiltered("browser:*", map[string]string{"sessionId": "s-other"}))

	h.publish(Event{Channel: "browser:click", SessionID: "s1"})

	assert.Len(t, matching.sendCh, 1)
	assert.Len(t, other.sendCh, 0)
}
