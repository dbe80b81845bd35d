package pubsub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrapeforge/crawlcore/pkg/pubsub"
)

func TestPublishInvokesSubscribers(t *testing.T) {
	t.Parallel()
	topic := pubsub.NewTopic[int]()

	var got []int
	topic.Subscribe(func(n int) { got = append(got, n) })
	topic.Subscribe(func(n int) { got = append(got, n*10) })

	topic.Publish(3)

	assert.Equal(t, []int{3, 30}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	topic := pubsub.NewTopic[string]()

	count := 0
	unsubscribe := topic.Subscribe(func(string) { count++ })
	topic.Publish("a")
	unsubscribe()
	topic.Publish("b")

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, topic.SubscriberCount())
}
