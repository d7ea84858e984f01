package queue

import (
	"fmt"
	"time"
)

// Options are the retry and retention semantics shared by producers and consumers.
type Options struct {
	Attempts        int           // total deliveries before a job moves to the failed stream
	Backoff         time.Duration // base delay of the exponential backoff
	RetainCompleted int64         // approximate stream length kept for recent jobs
	RetainFailed    int64         // approximate length of the failed stream
}

func DefaultOptions() Options {
	return Options{
		Attempts:        3,
		Backoff:         1000 * time.Millisecond,
		RetainCompleted: 1000,
		RetainFailed:    5000,
	}
}

// BackoffDelay returns base * 2^(attempt-1) for the attempt that just failed.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the shift so large attempt counts cannot overflow.
	if attempt > 20 {
		attempt = 20
	}
	return base * time.Duration(1<<(attempt-1))
}

func StreamName(queueName string) string {
	return fmt.Sprintf("queue:%s", queueName)
}

func FailedStreamName(queueName string) string {
	return fmt.Sprintf("queue:%s:failed", queueName)
}

func DelayedKey(queueName string) string {
	return fmt.Sprintf("queue:%s:delayed", queueName)
}
