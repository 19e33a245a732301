package cache

import "github.com/krisalay/statement-cache/api"

var _ api.Cache = (*StatementCache)(nil)
