package server

import "github.com/rediscore/server/internal/resp"

// PubSub implements spec component C12: a channel-name to subscriber-set
// mapping. SUBSCRIBE is idempotent per session; the session's own
// subscribedChannels counter (Session.SubscribedCount) is what drives
// sub-mode, so this type only owns the reverse index used for publish
// fan-out.
type PubSub struct {
	channels map[string]map[*Session]bool
	patterns map[string]map[*Session]bool
}

// NewPubSub creates an empty channel map.
func NewPubSub() *PubSub {
	return &PubSub{
		channels: make(map[string]map[*Session]bool),
		patterns: make(map[string]map[*Session]bool),
	}
}

// Subscribe adds s to channel's subscriber set and reports the session's
// new total subscription count. Repeated subscription to the same channel
// by the same session is a no-op on the set itself.
func (p *PubSub) Subscribe(s *Session, channel string) int {
	if p.channels[channel] == nil {
		p.channels[channel] = make(map[*Session]bool)
	}
	p.channels[channel][s] = true
	s.channels[channel] = true
	s.subMode = s.SubscribedCount() > 0
	return s.SubscribedCount()
}

// Unsubscribe removes s from channel's subscriber set, pruning the channel
// entry entirely once empty.
func (p *PubSub) Unsubscribe(s *Session, channel string) int {
	if set, ok := p.channels[channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(p.channels, channel)
		}
	}
	delete(s.channels, channel)
	s.subMode = s.SubscribedCount() > 0
	return s.SubscribedCount()
}

// PSubscribe adds s to pattern's subscriber set. Pattern matching on
// publish supports only the literal pattern and the "*" wildcard,
// consistent with the single wildcard Keyspace.Keys supports (spec §4.2)
// — no general glob engine exists in this codebase.
func (p *PubSub) PSubscribe(s *Session, pattern string) int {
	if p.patterns[pattern] == nil {
		p.patterns[pattern] = make(map[*Session]bool)
	}
	p.patterns[pattern][s] = true
	s.patterns[pattern] = true
	s.subMode = s.SubscribedCount() > 0
	return s.SubscribedCount()
}

// PUnsubscribe removes s from pattern's subscriber set.
func (p *PubSub) PUnsubscribe(s *Session, pattern string) int {
	if set, ok := p.patterns[pattern]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(p.patterns, pattern)
		}
	}
	delete(s.patterns, pattern)
	s.subMode = s.SubscribedCount() > 0
	return s.SubscribedCount()
}

// UnsubscribeAll removes s from every channel and pattern it is subscribed
// to, for disconnect and RESET teardown.
func (p *PubSub) UnsubscribeAll(s *Session) {
	for channel := range s.channels {
		p.Unsubscribe(s, channel)
	}
	for pattern := range s.patterns {
		p.PUnsubscribe(s, pattern)
	}
}

// Publish delivers message to every current subscriber of channel, plus
// every pattern subscriber whose pattern is "*" or equals channel exactly,
// and reports the total receiver count.
func (p *PubSub) Publish(e *Engine, channel string, message []byte) int {
	n := 0
	if set, ok := p.channels[channel]; ok {
		reply := resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("message"),
			resp.MakeBulkStringFromString(channel),
			resp.MakeBulkString(message),
		})
		for s := range set {
			e.sendReply(s, reply)
			n++
		}
	}
	for pattern, set := range p.patterns {
		if pattern != "*" && pattern != channel {
			continue
		}
		reply := resp.MakeArray([]resp.Value{
			resp.MakeBulkStringFromString("pmessage"),
			resp.MakeBulkStringFromString(pattern),
			resp.MakeBulkStringFromString(channel),
			resp.MakeBulkString(message),
		})
		for s := range set {
			e.sendReply(s, reply)
			n++
		}
	}
	return n
}

// restrictedInSubMode is the set of commands the dispatcher still allows
// while a session is in sub-mode, per spec §4.8's SUBSCRIBE row.
var restrictedInSubMode = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true,
	"PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true, "RESET": true,
}
