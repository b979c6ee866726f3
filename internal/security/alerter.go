// Package security counts failed authentication attempts per client and
// raises an alert once a client crosses a threshold inside a window.
package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

const (
	EventLogin   = "auth.login"
	EventSignup  = "auth.signup"
	EventLogout  = "auth.logout"
	EventSocket  = "screen.connect"
	OutcomeFail  = "fail"
	OutcomeLimit = "rate_limited"
)

type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// Rule is the alert threshold for one event.
type Rule struct {
	Threshold int64
	Window    time.Duration
}

// DefaultRules apply to failed outcomes; rate limited requests share one
// rule regardless of event.
var DefaultRules = map[string]Rule{
	EventLogin:  {Threshold: 10, Window: 5 * time.Minute},
	EventSignup: {Threshold: 10, Window: 5 * time.Minute},
	EventLogout: {Threshold: 15, Window: 5 * time.Minute},
	EventSocket: {Threshold: 25, Window: 5 * time.Minute},
}

var rateLimitedRule = Rule{Threshold: 20, Window: time.Minute}

// AuditAlerter keeps its counters in Redis so every instance shares them.
// A nil *AuditAlerter observes nothing.
type AuditAlerter struct {
	client redis.UniversalClient
	prefix string
	rules  map[string]Rule
	now    func() time.Time
}

func NewAuditAlerter(client redis.UniversalClient, prefix string, rules map[string]Rule) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "edusync:alerts"
	}
	if rules == nil {
		rules = DefaultRules
	}
	return &AuditAlerter{client: client, prefix: prefix, rules: rules, now: time.Now}
}

// Observe records one outcome of event for ip and reports whether the
// alert threshold has been reached.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil {
		return result, nil
	}
	rule, ok := a.rule(event, outcome)
	if !ok {
		return result, nil
	}
	windowMs := rule.Window.Milliseconds()
	if windowMs <= 0 || rule.Threshold <= 0 {
		return result, nil
	}
	if strings.TrimSpace(ip) == "" {
		ip = "unknown"
	}
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = rule.Threshold
	result.Window = rule.Window
	result.Triggered = count >= rule.Threshold
	return result, nil
}

func (a *AuditAlerter) rule(event, outcome string) (Rule, bool) {
	switch strings.TrimSpace(outcome) {
	case OutcomeLimit:
		return rateLimitedRule, true
	case OutcomeFail:
		r, ok := a.rules[strings.TrimSpace(event)]
		return r, ok
	default:
		return Rule{}, false
	}
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
