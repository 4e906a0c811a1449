package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agromix/pkg/domain"
)

// ErrorKind is the stable taxonomy persistence failures are mapped onto.
type ErrorKind string

// Error kinds in classification precedence order.
const (
	KindTableNotFound ErrorKind = "table_not_found"
	KindAuth          ErrorKind = "auth_error"
	KindRLS           ErrorKind = "rls_error"
	KindSchema        ErrorKind = "schema_error"
	KindNetwork       ErrorKind = "network_error"
	KindUnknown       ErrorKind = "unknown"
)

// PersistenceErrorInfo is the classified view of a backend error. UserMessage
// is safe to show; DiagnosticDetail is meant for logs and support.
type PersistenceErrorInfo struct {
	Kind             ErrorKind `json:"kind"`
	TechnicalMessage string    `json:"technical_message"`
	UserMessage      string    `json:"user_message"`
	DiagnosticDetail string    `json:"diagnostic_detail"`
}

var userMessages = map[ErrorKind]string{
	KindTableNotFound: "Cloud storage is not set up for this feature yet; the record was kept on this device.",
	KindAuth:          "Your session has expired. Please sign in again.",
	KindRLS:           "You do not have permission to perform this action.",
	KindSchema:        "The server database is out of date. Please contact support.",
	KindNetwork:       "Could not reach the server. Check your connection and try again.",
	KindUnknown:       "Could not process the request. Please try again.",
}

var (
	tableCodes  = map[string]bool{"42P01": true, "PGRST205": true}
	authCodes   = map[string]bool{"28P01": true, "28000": true, "PGRST300": true, "PGRST301": true, "PGRST302": true}
	rlsCodes    = map[string]bool{"42501": true}
	schemaCodes = map[string]bool{"42703": true, "PGRST204": true}

	tableMissingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(relation|table|view) "?[\w.]+"? does not exist`),
		regexp.MustCompile(`could not find the (table|relation) '?[\w.]+'? in the schema cache`),
		regexp.MustCompile(`no such table: [\w.]+`),
	}
	columnMissingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`column "?([\w.]+)"? (?:of relation "?[\w.]+"? )?does not exist`),
		regexp.MustCompile(`could not find the '([\w.]+)' column`),
		regexp.MustCompile(`no such column: ([\w.]+)`),
		regexp.MustCompile(`has no column named ([\w.]+)`),
	}
	authPhrases    = []string{"invalid api key", "jwt expired", "invalid jwt", "invalid token", "token is expired", "password authentication failed", "invalid credentials", "not authenticated"}
	rlsPhrases     = []string{"row-level security", "row level security", "permission denied"}
	networkPhrases = []string{"fetch failed", "failed to fetch", "network is unreachable", "network error", "timeout", "timed out", "connection refused", "no such host", "connection reset", "econnrefused"}
)

type errorSignal struct {
	code    string
	status  int
	grpc    codes.Code
	hasGRPC bool
	network bool
	message string
	text    string
}

// Classify maps any backend error onto the persistence taxonomy. It is total:
// unrecognised values, including nil, classify as KindUnknown.
func Classify(err error) PersistenceErrorInfo {
	if err == nil {
		return PersistenceErrorInfo{Kind: KindUnknown, UserMessage: userMessages[KindUnknown]}
	}
	sig := inspect(err)
	info := PersistenceErrorInfo{TechnicalMessage: err.Error()}

	switch {
	case sig.tableNotFound():
		info.Kind = KindTableNotFound
		info.DiagnosticDetail = sig.detail("table not provisioned")
	case sig.auth():
		info.Kind = KindAuth
		info.DiagnosticDetail = sig.detail("authentication rejected")
	case sig.rls():
		info.Kind = KindRLS
		info.DiagnosticDetail = sig.detail("row access denied")
	case sig.schema():
		info.Kind = KindSchema
		if column := sig.missingColumn(); column != "" {
			info.DiagnosticDetail = "missing column: " + column
		} else {
			info.DiagnosticDetail = sig.detail("schema mismatch")
		}
	case sig.isNetwork():
		info.Kind = KindNetwork
		info.DiagnosticDetail = sig.detail("transport failure")
	default:
		info.Kind = KindUnknown
		info.DiagnosticDetail = err.Error()
	}
	info.UserMessage = userMessages[info.Kind]
	return info
}

func inspect(err error) errorSignal {
	sig := errorSignal{text: strings.ToLower(err.Error())}

	var pgErr *pgconn.PgError
	var remoteErr *domain.RemoteError
	switch {
	case errors.As(err, &pgErr):
		sig.code = pgErr.Code
		sig.message = pgErr.Message
	case errors.As(err, &remoteErr):
		sig.code = remoteErr.Code
		sig.status = remoteErr.Status
		sig.message = remoteErr.Message
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		sig.grpc = st.Code()
		sig.hasGRPC = true
		if sig.message == "" {
			sig.message = st.Message()
		}
	}
	if sig.message == "" {
		sig.message = err.Error()
	}

	var netErr net.Error
	var connectErr *pgconn.ConnectError
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.As(err, &netErr) ||
		errors.As(err, &connectErr) ||
		pgconn.Timeout(err) {
		sig.network = true
	}
	return sig
}

func (s errorSignal) tableNotFound() bool {
	if tableCodes[s.code] {
		return true
	}
	if strings.Contains(s.text, "column") {
		return false
	}
	return matchesAny(s.text, tableMissingPatterns)
}

func (s errorSignal) auth() bool {
	if authCodes[s.code] || s.status == 401 {
		return true
	}
	if s.hasGRPC && s.grpc == codes.Unauthenticated {
		return true
	}
	return containsAny(s.text, authPhrases)
}

func (s errorSignal) rls() bool {
	if rlsCodes[s.code] || s.status == 403 {
		return true
	}
	if s.hasGRPC && s.grpc == codes.PermissionDenied {
		return true
	}
	return containsAny(s.text, rlsPhrases)
}

func (s errorSignal) schema() bool {
	if schemaCodes[s.code] {
		return true
	}
	return matchesAny(s.text, columnMissingPatterns)
}

func (s errorSignal) isNetwork() bool {
	if s.network {
		return true
	}
	if s.hasGRPC && (s.grpc == codes.Unavailable || s.grpc == codes.DeadlineExceeded) {
		return true
	}
	return containsAny(s.text, networkPhrases)
}

func (s errorSignal) missingColumn() string {
	for _, re := range columnMissingPatterns {
		if m := re.FindStringSubmatch(strings.ToLower(s.message)); len(m) > 1 {
			return m[1]
		}
		if m := re.FindStringSubmatch(s.text); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func (s errorSignal) detail(prefix string) string {
	if s.code != "" {
		return fmt.Sprintf("%s: [%s] %s", prefix, s.code, s.message)
	}
	return fmt.Sprintf("%s: %s", prefix, s.message)
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
