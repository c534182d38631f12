// Package limit throttles task execution per channel.
//
// A [Rule] caps how fast tasks of one channel may start and how many may
// run at once; a global rule caps the whole pool. Channels are identified
// by their formatted key, the same string found in task.Info.Channel.
//
//	m := limit.NewManager(
//	    limit.Rule{Channel: "42", RateLimit: 5, RateBurst: 5},
//	)
//	m.SetGlobal(limit.Rule{MaxConcurrency: 8})
//
//	if ok, wait := m.Acquire("42"); ok {
//	    defer m.Release("42")
//	    // run the task
//	} else {
//	    // put the task back and retry after wait
//	}
//
// Rate limits use a token bucket (golang.org/x/time/rate). A denied
// Acquire consumes nothing. Channels without a rule are limited only by
// the global rule.
//
// The dispatcher already runs tasks of a channel one at a time, so a
// per-channel MaxConcurrency above one only has an effect on the default
// channel.
package limit
