// Package analyze runs one decode-and-validate pass over a byte source and
// assembles an immutable Result: the decoded structures, an ordered list of
// severity-tagged issues, and informational strings. Decoders report what is
// on disk; this package judges it.
package analyze

import (
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

// Format identifies which on-disk layout a source is decoded as.
type Format int

const (
	FormatUnknown Format = iota
	FormatExFAT
	FormatExt4
	FormatFAT16
)

var formatNames = [...]string{
	FormatUnknown: "unknown",
	FormatExFAT:   "exfat",
	FormatExt4:    "ext4",
	FormatFAT16:   "fat16",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if n == name && Format(f) != FormatUnknown {
			return Format(f), nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown format %q", name)
}

// Severity ranks a validation finding.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Issue is one validation finding. Issues are data, not errors: decoding
// continues past them wherever later fields do not depend on the invalid
// value.
type Issue struct {
	Severity Severity
	Message  string
	Location string // structural location, e.g. "superblock", "bg 3"
}

func (i Issue) String() string {
	if i.Location != "" {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Location, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
}

// DecodeError reports that a fixed, unconditionally-present structure could
// not be obtained. The validator never runs on a failed decode.
type DecodeError struct {
	Format    Format
	Structure string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode %s: %v", e.Format, e.Structure, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Result is an immutable snapshot of one decode+validate run. Exactly one
// of the per-format payloads is set, matching Format.
type Result struct {
	Format Format
	ExFAT  *ExFATData
	Ext4   *Ext4Data
	FAT16  *FAT16Data
	Issues []Issue
	Info   []string
}

// HasCritical reports whether any issue is Critical-severity.
func (r *Result) HasCritical() bool {
	for _, is := range r.Issues {
		if is.Severity == Critical {
			return true
		}
	}
	return false
}

func (r *Result) addInfof(format string, args ...any) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// fatPreview is how many leading allocation-table entries an analysis
// decodes; enough to cover the mandated entries and early chains.
const fatPreview = 20

// Analyze dispatches to the format-specific analysis.
func Analyze(src source.Source, f Format) (*Result, error) {
	switch f {
	case FormatExFAT:
		return ExFAT(src)
	case FormatExt4:
		return Ext4(src)
	case FormatFAT16:
		return FAT16(src)
	default:
		return nil, fmt.Errorf("cannot analyze format %q", f)
	}
}

type issueList struct {
	issues []Issue
}

func (l *issueList) critical(loc, format string, args ...any) {
	l.issues = append(l.issues, Issue{Severity: Critical, Location: loc, Message: fmt.Sprintf(format, args...)})
}

func (l *issueList) warning(loc, format string, args ...any) {
	l.issues = append(l.issues, Issue{Severity: Warning, Location: loc, Message: fmt.Sprintf(format, args...)})
}

func (l *issueList) info(loc, format string, args ...any) {
	l.issues = append(l.issues, Issue{Severity: Info, Location: loc, Message: fmt.Sprintf(format, args...)})
}
