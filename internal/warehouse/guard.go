package warehouse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GuardOptions scope ad-hoc SQL run against the analyses table.
type GuardOptions struct {
	// UserID, when set, requires a user_id = '<UserID>' predicate and rejects other users.
	UserID string
	// MaxDaysLookback > 0 requires a dt lower bound no older than this many days.
	MaxDaysLookback int
	// Today is "YYYY-MM-DD"; empty means UTC today.
	Today string
}

var (
	wordDT      = regexp.MustCompile(`\bdt\b`)
	wordUserID  = regexp.MustCompile(`\buser_id\b`)
	dtBetween   = regexp.MustCompile(`\bdt\b\s+between\s+(?:date\s+)?'(\d{4}-\d{2}-\d{2})'\s+and\s+(?:date\s+)?'\d{4}-\d{2}-\d{2}'`)
	dtLower     = regexp.MustCompile(`\bdt\b\s*(?:>=|>)\s*(?:date\s+)?'(\d{4}-\d{2}-\d{2})'`)
	userEq      = regexp.MustCompile(`(?i)\buser_id\b\s*=\s*'([^']*)'`)
	userIn      = regexp.MustCompile(`(?i)\buser_id\b\s+in\s*\(([^)]*)\)`)
	quotedValue = regexp.MustCompile(`'([^']*)'`)
	wordOr      = regexp.MustCompile(`\bor\b`)

	blockedKeywords = []string{
		"insert ", "update ", "delete ", "merge ", "drop ", "alter ", "create ",
		"truncate ", "grant ", "revoke ", "call ", "execute ", "prepare ", "deallocate ",
		"unload ", "msck ",
	}
)

// ValidateSelect accepts a single SELECT (or WITH) statement without comments
// and applies the scoping in opt.
func ValidateSelect(sql string, opt GuardOptions) error {
	low := strings.ToLower(strings.TrimSpace(sql))
	if low == "" {
		return fmt.Errorf("empty sql")
	}
	if strings.Contains(low, ";") {
		return fmt.Errorf("semicolon not allowed")
	}
	if strings.Contains(low, "--") || strings.Contains(low, "/*") || strings.Contains(low, "*/") {
		return fmt.Errorf("comments not allowed")
	}
	if !strings.HasPrefix(low, "select") && !strings.HasPrefix(low, "with") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	padded := low + " "
	for _, kw := range blockedKeywords {
		if strings.Contains(padded, kw) {
			return fmt.Errorf("disallowed keyword: %s", strings.TrimSpace(kw))
		}
	}

	if opt.MaxDaysLookback > 0 {
		if err := requireRecentDT(low, opt.Today, opt.MaxDaysLookback); err != nil {
			return err
		}
	}
	if opt.UserID != "" {
		return requireUser(strings.TrimSpace(sql), opt.UserID)
	}
	return nil
}

func requireRecentDT(low, today string, maxDays int) error {
	if strings.TrimSpace(today) == "" {
		today = time.Now().UTC().Format(time.DateOnly)
	}
	t, err := time.Parse(time.DateOnly, today)
	if err != nil {
		return fmt.Errorf("invalid today: %s", today)
	}
	oldest := t.AddDate(0, 0, -maxDays)

	var start string
	if m := dtBetween.FindStringSubmatch(low); m != nil {
		start = m[1]
	} else if m := dtLower.FindStringSubmatch(low); m != nil {
		start = m[1]
	} else if wordDT.MatchString(low) {
		return fmt.Errorf("dt filter must include a lower bound (dt >= ... or dt BETWEEN ...)")
	} else {
		return fmt.Errorf("missing required dt filter")
	}

	d, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return fmt.Errorf("invalid dt lower bound: %s", start)
	}
	if d.Before(oldest) {
		return fmt.Errorf("dt lookback too large: start=%s older than %d days", start, maxDays)
	}
	return nil
}

// requireUser compares user ids case-sensitively. OR is rejected outright
// since it can widen the user predicate.
func requireUser(sql, user string) error {
	low := strings.ToLower(sql)
	if !wordUserID.MatchString(low) {
		return fmt.Errorf("missing required user_id filter")
	}
	if wordOr.MatchString(quotedValue.ReplaceAllString(low, "''")) {
		return fmt.Errorf("OR not allowed in a user-scoped query")
	}
	var values []string
	for _, m := range userEq.FindAllStringSubmatch(sql, -1) {
		values = append(values, m[1])
	}
	for _, m := range userIn.FindAllStringSubmatch(sql, -1) {
		vals := quotedValue.FindAllStringSubmatch(m[1], -1)
		if len(vals) == 0 {
			return fmt.Errorf("user_id IN list must contain quoted values")
		}
		for _, v := range vals {
			values = append(values, v[1])
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("user_id filter must be equality or IN list")
	}
	for _, v := range values {
		if v != user {
			return fmt.Errorf("user_id value not allowed: %s", v)
		}
	}
	return nil
}
