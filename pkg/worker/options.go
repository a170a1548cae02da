package worker

import "github.com/ThreeDotsLabs/watermill/message"

// Option configures a Worker.
type Option func(*Worker)

func WithSubscriber(sub message.Subscriber) Option {
	return func(w *Worker) {
		w.subscriber = sub
	}
}

// WithTopics subscribes to topics and restricts HandleTopic to them.
func WithTopics(topics ...string) Option {
	return func(w *Worker) {
		for _, topic := range topics {
			if topic == "" {
				continue
			}
			w.topics = append(w.topics, topic)
			w.allowedTopics[topic] = struct{}{}
		}
	}
}

// WithTopicPrefix sets the prefix HandleKind derives topics from.
func WithTopicPrefix(prefix string) Option {
	return func(w *Worker) {
		w.topicPrefix = prefix
	}
}

func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func WithCodec(c Codec) Option {
	return func(w *Worker) {
		if c != nil {
			w.codec = c
		}
	}
}

// WithMiddleware appends middleware; the first one given runs outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(w *Worker) {
		w.middleware = append(w.middleware, mw...)
	}
}

func WithRetry(policy RetryPolicy) Option {
	return func(w *Worker) {
		if policy != nil {
			w.retry = policy
		}
	}
}

func WithLogger(l Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

func WithListener(listener Listener) Option {
	return func(w *Worker) {
		w.listeners = append(w.listeners, listener)
	}
}
