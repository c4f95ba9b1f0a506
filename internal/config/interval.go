package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Interval sources reported by ParseInterval.
const (
	SourceDuration = "duration"
	SourceHHMM     = "hhmm"
	SourceEvery    = "every"
)

const everyPrefix = "@every "

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// descriptorParser only needs to understand "@every"; field-based cron
// expressions are parsed so they can be rejected with a clear message.
var descriptorParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseInterval parses a task interval.
//
// Supported forms:
//   - Go duration: "10s", "2m", "0s" (back-to-back)
//   - HH:MM: "00:50" (50 minutes), "02:30"
//   - "@every <duration>"
//
// Optional "interval:" or "every:" prefixes are accepted. Calendar schedules
// ("*/5 * * * *", "@hourly") are rejected: tasks only repeat on a fixed delay.
func ParseInterval(raw string) (time.Duration, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, "", fmt.Errorf("interval required")
	}
	low := strings.ToLower(s)
	for _, p := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return parseDescriptor(s)
	}
	if reHHMM.MatchString(s) {
		d, err := parseHHMMDuration(s)
		return d, SourceHHMM, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, "", fmt.Errorf(
			"invalid interval %q (use a duration like '10s', HH:MM like '02:30', or '@every 1m')",
			raw,
		)
	}
	if d < 0 {
		return 0, "", fmt.Errorf("interval %q must be >= 0", raw)
	}
	return d, SourceDuration, nil
}

func parseDescriptor(s string) (time.Duration, string, error) {
	sched, err := descriptorParser.Parse(s)
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if _, ok := sched.(cron.ConstantDelaySchedule); !ok {
		return 0, "", fmt.Errorf("interval %q is a calendar schedule; use '@every <duration>'", s)
	}
	// ConstantDelaySchedule rounds to whole seconds with a 1s floor, which
	// would turn "@every -5s" into 1s. Use the duration as written.
	d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, everyPrefix)))
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d < 0 {
		return 0, "", fmt.Errorf("interval %q must be >= 0", s)
	}
	return d, SourceEvery, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
