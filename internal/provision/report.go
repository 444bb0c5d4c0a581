package provision

import (
	"fmt"
	"os"
	"strings"
)

// Report is the result of one plan run. Outcomes stop at the first failure.
type Report struct {
	Outcomes []Outcome
	// PathAdditions are bin dirs of installed tools missing from the snapshot PATH.
	PathAdditions []string
}

// Failure returns the failed outcome, if the run halted.
func (r Report) Failure() (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return o, true
		}
	}
	return Outcome{}, false
}

// Err returns the error of the failed outcome, or nil.
func (r Report) Err() error {
	if o, ok := r.Failure(); ok {
		return o.Err
	}
	return nil
}

// ExitCode is 0 on full success and 1 when a requirement failed.
func (r Report) ExitCode() int {
	if _, ok := r.Failure(); ok {
		return 1
	}
	return 0
}

// Count returns how many outcomes have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Instructions renders shell lines the operator should apply.
func (r Report) Instructions() []string {
	if len(r.PathAdditions) == 0 {
		return nil
	}
	sep := string(os.PathListSeparator)
	quoted := make([]string, 0, len(r.PathAdditions))
	for _, dir := range r.PathAdditions {
		quoted = append(quoted, doubleQuoteEscaper.Replace(dir))
	}
	return []string{fmt.Sprintf(`export PATH="$PATH%s%s"`, sep, strings.Join(quoted, sep))}
}

var doubleQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
