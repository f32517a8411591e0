package badger

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/dittowopi/pkg/token"
)

// Database Key Namespace
// ======================
//
// Data Type      Prefix   Key Format                       Value
// =================================================================
// Token          "t:"     t:<token>                        record (JSON)
// Issue order    "i:"     i:<issuedNanos hex16>:<token>    empty
//
// The issue-order index sorts lexicographically in issuance order because the
// timestamp is fixed-width hex. Eviction takes the first keys of the "i:"
// range; the token suffix disambiguates tokens issued in the same nanosecond.

const (
	prefixToken = "t:"
	prefixIssue = "i:"
)

func keyToken(tok token.Token) []byte {
	return []byte(prefixToken + string(tok))
}

func keyIssue(issuedAt time.Time, tok token.Token) []byte {
	return []byte(fmt.Sprintf("%s%016x:%s", prefixIssue, uint64(issuedAt.UnixNano()), tok))
}

// tokenFromIssueKey extracts the token from an "i:" key.
func tokenFromIssueKey(k []byte) (token.Token, bool) {
	s := strings.TrimPrefix(string(k), prefixIssue)
	_, tok, ok := strings.Cut(s, ":")
	return token.Token(tok), ok
}
