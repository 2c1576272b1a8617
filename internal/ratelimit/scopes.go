package ratelimit

import "time"

// Scope is a named limit, the first half of every key built for it.
type Scope struct {
	Name   string
	Config Config
}

var (
	JobsCreateIP   = Scope{Name: "jobs-create-ip", Config: Config{MaxHits: 30, Window: 10 * time.Minute, Block: 15 * time.Minute}}
	JobsCreateUser = Scope{Name: "jobs-create-user", Config: Config{MaxHits: 20, Window: 10 * time.Minute, Block: 15 * time.Minute}}
	JobsRetryUser  = Scope{Name: "jobs-retry-user", Config: Config{MaxHits: 20, Window: 10 * time.Minute, Block: 15 * time.Minute}}
)

// Key builds the key for identifier within the scope.
func (s Scope) Key(identifier string) string {
	return Key(s.Name, identifier)
}
