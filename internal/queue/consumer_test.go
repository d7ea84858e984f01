package queue

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RedisConsumer", func() {
	var (
		ctx      context.Context
		mr       *miniredis.Miniredis
		client   *redis.Client
		consumer *RedisConsumer
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		opts := DefaultOptions()
		opts.Backoff = time.Millisecond
		consumer, err = NewRedisConsumer(ctx, client, ConsumerConfig{
			Queue:     QueueAutomation,
			Group:     "workers",
			Consumer:  "worker-1",
			BatchSize: 10,
			Block:     10 * time.Millisecond,
			Options:   opts,
		})
		Expect(err).NotTo(HaveOccurred())

		producer := NewRedisProducer(client, opts, nil)
		Expect(producer.Enqueue(ctx, QueueAutomation, JobExecuteAutomation, map[string]string{"k": "v"})).To(Succeed())
	})

	readOne := func() Message {
		messages, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(1))
		return messages[0]
	}

	pendingCount := func() int64 {
		pending, err := client.XPending(ctx, StreamName(QueueAutomation), "workers").Result()
		Expect(err).NotTo(HaveOccurred())
		return pending.Count
	}

	Describe("Retry", func() {
		It("schedules the next attempt and acks the entry", func() {
			msg := readOne()

			Expect(consumer.Retry(ctx, msg, "db down")).To(Succeed())

			Expect(client.ZCard(ctx, DelayedKey(QueueAutomation)).Val()).To(Equal(int64(1)))
			Expect(pendingCount()).To(BeZero())
		})

		It("leaves the entry pending when the delayed set cannot be written", func() {
			msg := readOne()
			Expect(mr.Set(DelayedKey(QueueAutomation), "not-a-zset")).To(Succeed())

			Expect(consumer.Retry(ctx, msg, "db down")).NotTo(Succeed())

			Expect(pendingCount()).To(Equal(int64(1)))
		})

		It("redelivers the job with the next attempt once due", func() {
			msg := readOne()
			Expect(consumer.Retry(ctx, msg, "db down")).To(Succeed())

			promoted, err := consumer.PromoteDue(ctx, time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(promoted).To(Equal(1))

			again := readOne()
			Expect(again.JobID).To(Equal(msg.JobID))
			Expect(again.Attempt).To(Equal(2))
			Expect(again.LastError).To(Equal("db down"))
		})
	})

	Describe("Fail", func() {
		It("records the job on the failed stream and acks the entry", func() {
			msg := readOne()

			Expect(consumer.Fail(ctx, msg, "gave up")).To(Succeed())

			failed, err := client.XRange(ctx, FailedStreamName(QueueAutomation), "-", "+").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Values).To(HaveKeyWithValue("error", "gave up"))
			Expect(failed[0].Values).To(HaveKeyWithValue("job_id", msg.JobID))
			Expect(pendingCount()).To(BeZero())
		})

		It("leaves the entry pending when the failed stream cannot be written", func() {
			msg := readOne()
			Expect(mr.Set(FailedStreamName(QueueAutomation), "not-a-stream")).To(Succeed())

			Expect(consumer.Fail(ctx, msg, "gave up")).NotTo(Succeed())

			Expect(pendingCount()).To(Equal(int64(1)))
		})
	})

	Describe("ClaimStale", func() {
		It("counts unsettled deliveries as used attempts", func() {
			msg := readOne()
			Expect(msg.Attempt).To(Equal(1))

			claimed, err := consumer.ClaimStale(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(claimed).To(HaveLen(1))
			Expect(claimed[0].JobID).To(Equal(msg.JobID))
			Expect(claimed[0].Deliveries).To(Equal(int64(1)))
			Expect(claimed[0].Attempt).To(Equal(2))
		})
	})
})
